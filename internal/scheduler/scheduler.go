// Package scheduler keeps a live set of daily publication jobs in sync with
// the schedule rules stored in the database.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/atomic"

	"github.com/i474232898/telegram-weather-publisher/internal/store"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

const testJobID = "publish_test_every_minute"

// JobID derives the live job identifier for a forecast kind.
func JobID(kind weather.Kind) string {
	return "publish_" + kind.String()
}

// RuleSource provides the currently active schedule rules.
type RuleSource interface {
	ActiveSchedules(ctx context.Context) ([]store.Schedule, error)
}

// Publisher runs a single publication cycle.
type Publisher interface {
	Publish(ctx context.Context, kind weather.Kind) (int, error)
}

// Options tune the reconciler. Zero values are replaced with defaults in New.
type Options struct {
	PollInterval   time.Duration
	MisfireGrace   time.Duration
	Location       *time.Location
	StartupCatchUp bool

	// TestEveryMinute keeps an extra job publishing TestKind every minute.
	TestEveryMinute bool
	TestKind        weather.Kind

	PublishTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.MisfireGrace <= 0 {
		o.MisfireGrace = 5 * time.Minute
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.TestKind == 0 {
		o.TestKind = weather.KindToday
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Minute
	}
	return o
}

// Stats are counters of job executions since start.
type Stats struct {
	Fired   int64
	Dropped int64
	Missed  int64
}

type liveJob struct {
	kind  weather.Kind
	at    store.TimeOfDay
	every bool
}

// Reconciler owns the live job table. Reconcile, CatchUp and Run must be
// called from a single goroutine; scheduled fires run on gocron's goroutines
// and only touch the in-flight guards and counters.
type Reconciler struct {
	cron      *gocron.Scheduler
	rules     RuleSource
	publisher Publisher
	opts      Options
	now       func() time.Time

	live     map[string]liveJob
	inFlight map[weather.Kind]*atomic.Bool

	// base is the parent context for scheduled fires; set by Run before the
	// cron scheduler starts.
	base context.Context

	fired   *atomic.Int64
	dropped *atomic.Int64
	missed  *atomic.Int64
}

// New creates a new Reconciler. Jobs are not started until Run.
func New(rules RuleSource, publisher Publisher, opts Options) *Reconciler {
	opts = opts.withDefaults()

	inFlight := make(map[weather.Kind]*atomic.Bool, len(weather.Kinds()))
	for _, kind := range weather.Kinds() {
		inFlight[kind] = atomic.NewBool(false)
	}

	return &Reconciler{
		cron:      gocron.NewScheduler(opts.Location),
		rules:     rules,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		live:      make(map[string]liveJob),
		inFlight:  inFlight,
		base:      context.Background(),
		fired:     atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
		missed:    atomic.NewInt64(0),
	}
}

// Reconcile makes the live jobs match the active schedule rules: new rules
// are scheduled, changed times are rescheduled and jobs without a rule are
// removed. If the rules cannot be read the live jobs are left untouched.
func (r *Reconciler) Reconcile(ctx context.Context) {
	rules, err := r.rules.ActiveSchedules(ctx)
	if err != nil {
		log.Printf("WARN: scheduler: failed to load schedules, keeping %d live jobs: %v", len(r.live), err)
		return
	}

	want := make(map[string]struct{}, len(rules)+1)
	for _, rule := range rules {
		id := JobID(rule.Kind)
		want[id] = struct{}{}

		next := liveJob{kind: rule.Kind, at: rule.At}
		if cur, ok := r.live[id]; ok && cur == next {
			continue
		}
		if err := r.schedule(id, next); err != nil {
			log.Printf("ERROR: scheduler: %v", err)
		}
	}

	if r.opts.TestEveryMinute {
		want[testJobID] = struct{}{}
		next := liveJob{kind: r.opts.TestKind, every: true}
		if cur, ok := r.live[testJobID]; !ok || cur != next {
			if err := r.schedule(testJobID, next); err != nil {
				log.Printf("ERROR: scheduler: %v", err)
			}
		}
	}

	for id := range r.live {
		if _, ok := want[id]; !ok {
			r.unschedule(id)
			log.Printf("INFO: scheduler: removed stale job %s", id)
		}
	}
}

func (r *Reconciler) schedule(id string, job liveJob) error {
	if _, ok := r.live[id]; ok {
		r.unschedule(id)
	}

	var err error
	if job.every {
		_, err = r.cron.Every(1).Minute().Tag(id).SingletonMode().Do(r.fireTest, job.kind)
	} else {
		_, err = r.cron.Every(1).Day().At(job.at.String()).Tag(id).SingletonMode().Do(r.fire, job.kind, job.at)
	}
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", id, err)
	}

	r.live[id] = job
	if job.every {
		log.Printf("INFO: scheduler: scheduled %s every minute (type=%s)", id, job.kind)
	} else {
		log.Printf("INFO: scheduler: scheduled %s at %s", id, job.at)
	}
	return nil
}

func (r *Reconciler) unschedule(id string) {
	if err := r.cron.RemoveByTag(id); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		log.Printf("WARN: scheduler: remove job %s: %v", id, err)
	}
	delete(r.live, id)
}

// CatchUp publishes, synchronously, every active rule whose time of day has
// already passed today. Publishing is idempotent per channel, kind and date,
// so repeated catch-ups after restarts deliver nothing new.
func (r *Reconciler) CatchUp(ctx context.Context) {
	rules, err := r.rules.ActiveSchedules(ctx)
	if err != nil {
		log.Printf("WARN: scheduler: startup catch-up skipped: %v", err)
		return
	}

	now := r.now().In(r.opts.Location)
	nowMinutes := now.Hour()*60 + now.Minute()
	for _, rule := range rules {
		if rule.At.Minutes() > nowMinutes {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("INFO: scheduler: startup catch-up for %s (%s)", rule.Kind, rule.At)
		r.run(ctx, rule.Kind)
	}
}

// Run reconciles, optionally catches up, then keeps polling the rules until
// ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.base = ctx

	r.Reconcile(ctx)
	if r.opts.StartupCatchUp {
		r.CatchUp(ctx)
	}

	r.cron.StartAsync()
	defer r.cron.Stop()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	log.Printf("INFO: scheduler: started (poll=%s tz=%s)", r.opts.PollInterval, r.opts.Location)
	for {
		select {
		case <-ctx.Done():
			log.Println("INFO: scheduler: stopping")
			return nil
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Jobs returns the live job identifiers mapped to their trigger time.
func (r *Reconciler) Jobs() map[string]string {
	out := make(map[string]string, len(r.live))
	for id, job := range r.live {
		if job.every {
			out[id] = "every minute"
			continue
		}
		out[id] = job.at.String()
	}
	return out
}

// JobIDs returns the live job identifiers in sorted order.
func (r *Reconciler) JobIDs() []string {
	ids := make([]string, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns execution counters.
func (r *Reconciler) Stats() Stats {
	return Stats{
		Fired:   r.fired.Load(),
		Dropped: r.dropped.Load(),
		Missed:  r.missed.Load(),
	}
}

// fire is the daily job body. A fire later than the misfire grace after its
// slot is skipped rather than run late.
func (r *Reconciler) fire(kind weather.Kind, at store.TimeOfDay) {
	now := r.now().In(r.opts.Location)
	slot := at.On(now)
	if slot.After(now) {
		slot = slot.AddDate(0, 0, -1)
	}
	if late := now.Sub(slot); late > r.opts.MisfireGrace {
		r.missed.Inc()
		log.Printf("WARN: scheduler: skipping %s, fired %s after %s (grace %s)", JobID(kind), late.Round(time.Second), at, r.opts.MisfireGrace)
		return
	}
	r.run(r.base, kind)
}

func (r *Reconciler) fireTest(kind weather.Kind) {
	r.run(r.base, kind)
}

// run publishes kind unless a cycle for the same kind is already in flight,
// in which case the fire is dropped.
func (r *Reconciler) run(ctx context.Context, kind weather.Kind) {
	guard, ok := r.inFlight[kind]
	if !ok {
		log.Printf("ERROR: scheduler: unknown forecast type %s", kind)
		return
	}
	if !guard.CAS(false, true) {
		r.dropped.Inc()
		log.Printf("WARN: scheduler: %s still running, dropping fire", JobID(kind))
		return
	}
	defer guard.Store(false)
	r.fired.Inc()

	ctx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()

	n, err := r.publisher.Publish(ctx, kind)
	if err != nil {
		log.Printf("ERROR: scheduler: publish %s failed: %v", kind, err)
		return
	}
	log.Printf("INFO: scheduler: publish %s done, published=%d", kind, n)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/telegram-weather-publisher/internal/api/http"
	"github.com/i474232898/telegram-weather-publisher/internal/bootstrap"
	"github.com/i474232898/telegram-weather-publisher/internal/config"
	"github.com/i474232898/telegram-weather-publisher/internal/scheduler"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

var (
	verbose  bool
	seedPath string
	cfg      *config.AppConfig
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "weather-publisher",
	Short:        "Publish scheduled weather forecasts to Telegram channels",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	bootstrapCmd.Flags().StringVar(&seedPath, "seed", "", "Path to a YAML seed file with cities, channels and schedules")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schedulerCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the remote publish trigger",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		app := fiber.New(fiber.Config{
			AppName:               "weather-publisher",
			DisableStartupMessage: true,
			ReadTimeout:           10 * time.Second,
			// A triggered cycle uploads videos to every channel.
			WriteTimeout: 5 * time.Minute,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				if e, ok := err.(*fiber.Error); ok {
					code = e.Code
				}
				return c.Status(code).JSON(fiber.Map{
					"error":   true,
					"message": err.Error(),
				})
			},
		})

		app.Use(logger.New())
		app.Use(recover.New())

		httpapi.RegisterRoutes(app, httpapi.Handler{
			Store:     a.store,
			Publisher: a.engine,
			CronToken: cfg.CronSecretToken,
		})
		if cfg.CronSecretToken == "" {
			log.Println("WARN: CRON_SECRET_TOKEN is empty; remote publish trigger is disabled")
		}

		go func() {
			if err := app.Listen(":" + cfg.Port); err != nil {
				log.Printf("fiber server stopped: %v", err)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("error during shutdown: %v", err)
		}
		return nil
	},
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the schedule reconciler and publish on schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		rec := scheduler.New(a.store, a.engine, scheduler.Options{
			PollInterval:    cfg.SchedulerPollInterval,
			MisfireGrace:    cfg.SchedulerMisfireGrace,
			Location:        cfg.Location,
			StartupCatchUp:  cfg.SchedulerStartupCatchUp,
			TestEveryMinute: cfg.TestPublishEveryMinute,
			TestKind:        cfg.TestPublishKind,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := rec.Run(ctx); err != nil {
			return err
		}
		s := rec.Stats()
		log.Printf("INFO: scheduler: fired=%d dropped=%d missed=%d", s.Fired, s.Dropped, s.Missed)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:       "publish <today|tomorrow|three_days>",
	Short:     "Publish a forecast now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"today", "tomorrow", "three_days"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := weather.ParseKind(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		n, err := a.engine.Publish(ctx, kind)
		if err != nil {
			return fmt.Errorf("publish %s: %w", kind, err)
		}
		fmt.Printf("Published: %d\n", n)
		return nil
	},
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create default config and schedules, optionally applying a seed file",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		if err := bootstrap.EnsureDefaults(ctx, st); err != nil {
			return err
		}
		if seedPath == "" {
			fmt.Println("Defaults are ready")
			return nil
		}

		seed, err := config.LoadSeed(seedPath)
		if err != nil {
			return err
		}
		if err := bootstrap.Apply(ctx, st, seed); err != nil {
			return err
		}
		fmt.Println("Defaults and seed data are ready")
		return nil
	},
}

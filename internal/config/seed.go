package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed describes initial data applied by the bootstrap command.
type Seed struct {
	ServiceEnabled *bool          `yaml:"service_enabled"`
	DefaultCity    string         `yaml:"default_city"`
	Cities         []SeedCity     `yaml:"cities" validate:"dive"`
	Channels       []SeedChannel  `yaml:"channels" validate:"dive"`
	Schedules      []SeedSchedule `yaml:"schedules" validate:"dive"`
}

type SeedCity struct {
	Name   string   `yaml:"name" validate:"required"`
	Lat    *float64 `yaml:"lat" validate:"omitempty,latitude"`
	Lon    *float64 `yaml:"lon" validate:"omitempty,longitude"`
	Active *bool    `yaml:"active"`
}

type SeedChannel struct {
	Name   string `yaml:"name"`
	ChatID string `yaml:"chat_id" validate:"required"`
	Active *bool  `yaml:"active"`
}

type SeedSchedule struct {
	Kind   string `yaml:"kind" validate:"required,oneof=today tomorrow three_days"`
	Time   string `yaml:"time" validate:"required"`
	Active *bool  `yaml:"active"`
}

// IsActive reports the active flag, defaulting to true when omitted.
func IsActive(flag *bool) bool {
	return flag == nil || *flag
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) (*Seed, error) {
	seed := &Seed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	if err := validate.Struct(seed); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	for _, c := range seed.Cities {
		if (c.Lat == nil) != (c.Lon == nil) {
			return nil, fmt.Errorf("invalid seed: city %q needs both lat and lon", c.Name)
		}
	}
	return seed, nil
}

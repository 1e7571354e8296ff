// Package config loads the meterbot configuration: the shared core settings
// plus the database and meter collection sections.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/meterbot/core/config"
	coredatabase "github.com/m3rciful/meterbot/core/database"
	"github.com/m3rciful/meterbot/internal/repository"
)

const (
	defaultPeriodOffset = 1
	defaultApartmentMin = 1
	defaultApartmentMax = 100
	defaultReminderText = "Please don't forget to submit your meter readings!"
)

// MetersConfig controls reading collection.
type MetersConfig struct {
	// PeriodOffsetMonths shifts the reporting period back from the current month; nil means 1.
	PeriodOffsetMonths *int   `yaml:"period_offset_months" envconfig:"DELTA_MONTH"`
	ApartmentMin       int    `yaml:"apartment_min" envconfig:"APARTMENT_MIN"`
	ApartmentMax       int    `yaml:"apartment_max" envconfig:"APARTMENT_MAX"`
	DeletionPolicy     string `yaml:"deletion_policy" envconfig:"DELETION_POLICY"`
	ReminderText       string `yaml:"reminder_text" envconfig:"REMINDER_TEXT"`
}

// Offset returns the configured period offset.
func (m MetersConfig) Offset() int {
	if m.PeriodOffsetMonths == nil {
		return defaultPeriodOffset
	}
	return *m.PeriodOffsetMonths
}

// Policy returns the parsed deletion policy; Normalize has already validated it.
func (m MetersConfig) Policy() repository.DeletionPolicy {
	p, err := repository.ParseDeletionPolicy(m.DeletionPolicy)
	if err != nil {
		return repository.DeleteKeep
	}
	return p
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Meters   MetersConfig        `yaml:"meters"`
}

// CoreConfig exposes the shared section to core/cmd.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads .env (if present), the YAML file and the environment overlay, then validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	m := &cfg.Meters
	if m.PeriodOffsetMonths == nil {
		off := defaultPeriodOffset
		m.PeriodOffsetMonths = &off
	}
	if *m.PeriodOffsetMonths < 0 {
		return fmt.Errorf("meters.period_offset_months must be >= 0")
	}
	if m.ApartmentMin == 0 {
		m.ApartmentMin = defaultApartmentMin
	}
	if m.ApartmentMax == 0 {
		m.ApartmentMax = defaultApartmentMax
	}
	if m.ApartmentMin < 1 || m.ApartmentMax < m.ApartmentMin {
		return fmt.Errorf("meters apartment range [%d, %d] is invalid", m.ApartmentMin, m.ApartmentMax)
	}
	policy, err := repository.ParseDeletionPolicy(m.DeletionPolicy)
	if err != nil {
		return fmt.Errorf("meters.deletion_policy: %w", err)
	}
	m.DeletionPolicy = string(policy)
	if strings.TrimSpace(m.ReminderText) == "" {
		m.ReminderText = defaultReminderText
	}
	return nil
}

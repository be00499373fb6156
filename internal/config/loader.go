package config

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if RANKD_CONFIG is set
//  3. env (prefix RANKD_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("RANKD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: RANKD_ADDR, RANKD_K_FACTOR, ...
	// Map env keys like RANKD_UPDATE_INTERVAL_SECONDS -> update_interval_seconds.
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("RANKD_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "rankd_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr must not be empty")
	case c.UpdateIntervalSeconds <= 0:
		return errors.New("update_interval_seconds must be positive")
	case c.KFactor <= 0:
		return errors.New("k_factor must be positive")
	case c.InitialRating < c.MinimumRating:
		return errors.New("initial_rating must not be below minimum_rating")
	case c.SignificanceThreshold < 1:
		return errors.New("significance_threshold must be at least 1")
	case len(c.Tiers) == 0:
		return errors.New("tiers must not be empty")
	}

	// The tier ladder must be total: the lowest threshold has to sit at or
	// below the rating floor so any valid rating classifies.
	lowest := c.Tiers[0].MinRating
	for _, t := range c.Tiers[1:] {
		if t.MinRating < lowest {
			lowest = t.MinRating
		}
	}
	if lowest > c.MinimumRating {
		return errors.New("lowest tier min_rating must not exceed minimum_rating")
	}

	// Normalize ordering, highest threshold first.
	sort.SliceStable(c.Tiers, func(i, j int) bool {
		return c.Tiers[i].MinRating > c.Tiers[j].MinRating
	})
	return nil
}

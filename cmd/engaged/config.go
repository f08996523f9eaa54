package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/outreachkit/engage/upsell"
	"gopkg.in/yaml.v3"
)

// config is the daemon's environment-driven configuration.
//
// All variables are prefixed with ENGAGED_.
type config struct {
	// ListenAddress is the address the HTTP API listens on.
	ListenAddress string `env:"LISTEN_ADDRESS" envDefault:":8080"`

	// Persistence selects the persistence driver: bolt, sqlite or memory.
	Persistence string `env:"PERSISTENCE" envDefault:"bolt"`

	// DataPath is the path to the data file used by the bolt and sqlite
	// drivers.
	DataPath string `env:"DATA_PATH" envDefault:"engaged.db"`

	// ApplicationKey is the identity key used to open the data-store.
	ApplicationKey string `env:"APPLICATION_KEY" envDefault:"engage"`

	// ReplyTimeout is the deadline for an account's reply.
	ReplyTimeout time.Duration `env:"REPLY_TIMEOUT" envDefault:"24h"`

	// UsageThreshold is the usage level above which an alert triggers an
	// engagement.
	UsageThreshold float64 `env:"USAGE_THRESHOLD" envDefault:"100"`

	// TiersPath is the path to an optional YAML file that overrides the
	// built-in plan tier ladder.
	TiersPath string `env:"TIERS_PATH"`

	// Debug enables debug logging.
	Debug bool `env:"DEBUG"`
}

func loadConfig() (config, error) {
	var cfg config

	err := env.ParseWithOptions(
		&cfg,
		env.Options{
			Prefix: "ENGAGED_",
		},
	)
	if err != nil {
		return config{}, fmt.Errorf("unable to parse environment: %w", err)
	}

	return cfg, nil
}

// tiersFile is the YAML shape of a tier-table override file.
type tiersFile struct {
	Tiers []struct {
		Plan           string   `yaml:"plan"`
		EstimatedValue float64  `yaml:"estimated_value"`
		Features       []string `yaml:"features"`
	} `yaml:"tiers"`
}

// loadTiers reads the plan tier ladder from the given YAML file.
//
// It returns nil if path is empty, in which case the built-in ladder is
// used.
func loadTiers(path string) ([]upsell.Tier, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read tier table: %w", err)
	}

	var f tiersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unable to parse tier table: %w", err)
	}

	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("tier table %s does not define any tiers", path)
	}

	tiers := make([]upsell.Tier, len(f.Tiers))
	for i, t := range f.Tiers {
		if t.Plan == "" {
			return nil, fmt.Errorf("tier table %s: tier %d has no plan name", path, i)
		}

		tiers[i] = upsell.Tier{
			Plan:           t.Plan,
			EstimatedValue: t.EstimatedValue,
			Features:       t.Features,
		}
	}

	return tiers, nil
}

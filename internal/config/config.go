package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"outlands.gg/internal/policy"
)

type Config struct {
	Addr           string `yaml:"addr"`
	DataDir        string `yaml:"data_dir"`
	PushIntervalMs int    `yaml:"push_interval_ms"`

	Policy Policy `yaml:"policy"`
}

type Policy struct {
	DeathCost            int64 `yaml:"death_cost"`
	PreventClanMateKills bool  `yaml:"prevent_clan_mate_kills"`
	ClaimsEnabled        bool  `yaml:"claims_enabled"`
	MinBounty            int64 `yaml:"min_bounty"`
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		DataDir:        "./data",
		PushIntervalMs: 2000,
	}
}

// Load reads a yaml config from path, filling unset fields from Default.
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("server config: %w", err)
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.PushIntervalMs <= 0 {
		c.PushIntervalMs = 2000
	}
	return c, nil
}

func (c Config) PushInterval() time.Duration {
	return time.Duration(c.PushIntervalMs) * time.Millisecond
}

// PolicySnapshot converts the yaml knobs into the pipeline's config
// snapshot shape.
func (c Config) PolicySnapshot() policy.Config {
	return policy.Config{
		DeathCost:            c.Policy.DeathCost,
		PreventClanMateKills: c.Policy.PreventClanMateKills,
		ClaimsEnabled:        c.Policy.ClaimsEnabled,
		MinBounty:            c.Policy.MinBounty,
	}
}

// Package config loads run configuration from YAML files and service
// settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pdptw/internal/model"
	"pdptw/internal/opt"
)

// Config is one solver run.
type Config struct {
	Instance   InstanceConfig     `yaml:"instance"`
	Output     OutputConfig       `yaml:"output"`
	Algorithms model.Algorithms   `yaml:"algorithms"`
	Search     model.SearchParams `yaml:"search"`
	Replay     ReplayConfig       `yaml:"replay"`
}

// InstanceConfig points at the requests file and describes the fleet. A
// fleet file overrides Vehicles and Capacity, which otherwise override the
// header of the requests file when non-zero.
type InstanceConfig struct {
	Path     string `yaml:"path"`
	Fleet    string `yaml:"fleet"`
	Vehicles int    `yaml:"vehicles"`
	Capacity int    `yaml:"capacity"`
}

// OutputConfig controls report files. An empty Dir disables them.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ReplayConfig enables the post-solve replay of the plan.
type ReplayConfig struct {
	Enabled bool    `yaml:"enabled"`
	Step    float64 `yaml:"step"`
	Horizon float64 `yaml:"horizon"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads and parses a YAML run file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	c.ApplyDefaults()
	return &c, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	c.Algorithms = opt.ApplyDefaults(c.Algorithms)
	c.Search = opt.WithDefaults(c.Search)
	if c.Replay.Step == 0 {
		c.Replay.Step = 10
	}
}

// Validate checks strategy names and parameter ranges, reporting every
// problem at once.
func (c *Config) Validate() error {
	var errs []error
	if err := opt.Validate(c.Algorithms); err != nil {
		errs = append(errs, err)
	}
	s := c.Search
	if s.Iterations < 0 {
		errs = append(errs, fmt.Errorf("search.iterations must be >= 0, got %d", s.Iterations))
	}
	if s.TimeBudgetMs < 0 {
		errs = append(errs, fmt.Errorf("search.timeBudgetMs must be >= 0, got %d", s.TimeBudgetMs))
	}
	if s.Tenure < 0 {
		errs = append(errs, fmt.Errorf("search.tenure must be >= 0, got %d", s.Tenure))
	}
	if s.Neighbors < 1 {
		errs = append(errs, fmt.Errorf("search.neighbors must be >= 1, got %d", s.Neighbors))
	}
	if s.RemovalMin <= 0 || s.RemovalMin > s.RemovalMax || s.RemovalMax > 1 {
		errs = append(errs, fmt.Errorf("search removal fractions must satisfy 0 < removalMin <= removalMax <= 1, got %g and %g", s.RemovalMin, s.RemovalMax))
	}
	if s.Randomization < 1 {
		errs = append(errs, fmt.Errorf("search.randomization must be >= 1, got %g", s.Randomization))
	}
	if s.RegretK < 2 {
		errs = append(errs, fmt.Errorf("search.regretK must be >= 2, got %d", s.RegretK))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("search.workers must be >= 1, got %d", s.Workers))
	}
	if s.SubProblems < 1 {
		errs = append(errs, fmt.Errorf("search.subProblems must be >= 1, got %d", s.SubProblems))
	}
	if c.Instance.Vehicles < 0 || c.Instance.Capacity < 0 {
		errs = append(errs, fmt.Errorf("instance vehicles and capacity must be >= 0"))
	}
	if c.Replay.Enabled && c.Replay.Step <= 0 {
		errs = append(errs, fmt.Errorf("replay.step must be > 0, got %g", c.Replay.Step))
	}
	return errors.Join(errs...)
}

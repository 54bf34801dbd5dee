package schedule

import (
	"fmt"
	"time"
)

// Config defines solver parameters loaded from configuration.
type Config struct {
	// BudgetSeconds bounds the wall-clock time of one constraint solve.
	BudgetSeconds int `json:"budget_seconds" yaml:"budget_seconds"`
	// HorizonDays bounds every start and end variable to keep the search
	// space finite.
	HorizonDays int `json:"horizon_days" yaml:"horizon_days"`
	// LookaheadDays is the window over which busy intervals are fetched.
	LookaheadDays int `json:"lookahead_days" yaml:"lookahead_days"`
	// DefaultDurationMinutes is used for tasks with no matching estimate.
	DefaultDurationMinutes int `json:"default_duration_minutes" yaml:"default_duration_minutes"`
	// Assignee is stamped on every schedule entry. There is no
	// multi-resource model; all tasks share one implicit worker.
	Assignee string `json:"assignee" yaml:"assignee"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BudgetSeconds == 0 {
		c.BudgetSeconds = 20
	}
	if c.HorizonDays == 0 {
		c.HorizonDays = 180
	}
	if c.LookaheadDays == 0 {
		c.LookaheadDays = c.HorizonDays
	}
	if c.DefaultDurationMinutes == 0 {
		c.DefaultDurationMinutes = 60
	}
	if c.Assignee == "" {
		c.Assignee = "default"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BudgetSeconds < 0 {
		return fmt.Errorf("budget_seconds must not be negative")
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("horizon_days must be positive")
	}
	if c.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("default_duration_minutes must be positive")
	}
	return nil
}

// Budget returns the solver wall-clock budget as a duration.
func (c Config) Budget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}

// Horizon returns the scheduling horizon in minutes.
func (c Config) Horizon() int {
	return c.HorizonDays * 24 * 60
}

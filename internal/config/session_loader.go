package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionLimits holds the trading-window and throttle configuration loaded
// from the session YAML file. Times are local time-of-day, "HH:MM:SS".
type SessionLimits struct {
	WindowStart       string `yaml:"window_start"`
	WindowEnd         string `yaml:"window_end"`
	OrdersPerInterval int    `yaml:"orders_per_interval"`
	TickIntervalMs    int    `yaml:"tick_interval_ms"`
	WindowCheckMs     int    `yaml:"window_check_interval_ms"`
}

// LoadSessionLimits reads and validates the session limits file.
// Validation failures here are fatal configuration errors.
func LoadSessionLimits(path string) (SessionLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionLimits{}, fmt.Errorf("read session limits: %w", err)
	}

	var limits SessionLimits
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return SessionLimits{}, fmt.Errorf("parse session limits: %w", err)
	}

	if limits.TickIntervalMs <= 0 {
		limits.TickIntervalMs = 1000
	}
	if limits.WindowCheckMs <= 0 {
		limits.WindowCheckMs = 60000
	}

	if err := limits.validate(); err != nil {
		return SessionLimits{}, err
	}
	return limits, nil
}

func (sl SessionLimits) validate() error {
	start, err := sl.StartOfDay()
	if err != nil {
		return err
	}
	end, err := sl.EndOfDay()
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("session limits: window_end %q before window_start %q", sl.WindowEnd, sl.WindowStart)
	}
	if sl.OrdersPerInterval <= 0 {
		return fmt.Errorf("session limits: orders_per_interval must be positive, got %d", sl.OrdersPerInterval)
	}
	return nil
}

// StartOfDay returns window_start as a duration past midnight.
func (sl SessionLimits) StartOfDay() (time.Duration, error) {
	return parseTimeOfDay("window_start", sl.WindowStart)
}

// EndOfDay returns window_end as a duration past midnight.
func (sl SessionLimits) EndOfDay() (time.Duration, error) {
	return parseTimeOfDay("window_end", sl.WindowEnd)
}

// TickInterval returns the throttle reset/drain period.
func (sl SessionLimits) TickInterval() time.Duration {
	return time.Duration(sl.TickIntervalMs) * time.Millisecond
}

// WindowCheckInterval returns the trading-window poll period.
func (sl SessionLimits) WindowCheckInterval() time.Duration {
	return time.Duration(sl.WindowCheckMs) * time.Millisecond
}

func parseTimeOfDay(field, v string) (time.Duration, error) {
	t, err := time.Parse("15:04:05", v)
	if err != nil {
		return 0, fmt.Errorf("session limits: %s %q: %w", field, v, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

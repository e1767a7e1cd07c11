package config

import (
	"strings"
	"time"
)

// Config is the root configuration for payguard.
type Config struct {
	App       AppConfig       `toml:"app"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Execution ExecutionConfig `toml:"execution"`
	HTTP      HTTPConfig      `toml:"http"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	HTTPAddr  string `toml:"http_addr"`
}

// ScoringConfig holds the balanced-mode weights and the profit composite penalties.
type ScoringConfig struct {
	MEVWeight    float64 `toml:"mev_weight"`
	ProfitWeight float64 `toml:"profit_weight"`
	RiskPenalty  float64 `toml:"risk_penalty"`
	WaitPenalty  float64 `toml:"wait_penalty"`
	GasPenalty   float64 `toml:"gas_penalty"`
}

type ExecutionConfig struct {
	StepDelay          time.Duration `toml:"step_delay"`
	HistoryLimit       int           `toml:"history_limit"`
	ScheduleHorizon    time.Duration `toml:"schedule_horizon"`
	PromoteInterval    time.Duration `toml:"promote_interval"`
	SuccessProbability float64       `toml:"success_probability"`
}

// HTTPConfig limits submissions per client. RateLimitPerMin <= 0 disables the limiter.
type HTTPConfig struct {
	RateLimitPerMin int `toml:"rate_limit_per_min"`
	Burst           int `toml:"burst"`
}

// keySet tracks the dotted paths explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

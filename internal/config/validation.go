package config

import (
	"fmt"
	"strings"
)

// validate runs basic sanity checks after defaults are applied.
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Scoring.validate(); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	return c.HTTP.validate()
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level %q is not one of debug/info/warn/error", a.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json", "tint":
	default:
		return fmt.Errorf("app.log_format %q is not one of text/json/tint", a.LogFormat)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (s *ScoringConfig) validate() error {
	if s.MEVWeight < 0 || s.ProfitWeight < 0 {
		return fmt.Errorf("scoring weights must be >= 0")
	}
	if s.MEVWeight+s.ProfitWeight == 0 {
		return fmt.Errorf("scoring.mev_weight and scoring.profit_weight cannot both be 0")
	}
	if s.RiskPenalty < 0 || s.WaitPenalty < 0 || s.GasPenalty < 0 {
		return fmt.Errorf("scoring penalties must be >= 0")
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	if e.HistoryLimit <= 0 {
		return fmt.Errorf("execution.history_limit must be > 0")
	}
	if e.StepDelay <= 0 {
		return fmt.Errorf("execution.step_delay must be > 0")
	}
	if e.ScheduleHorizon <= 0 {
		return fmt.Errorf("execution.schedule_horizon must be > 0")
	}
	if e.PromoteInterval <= 0 {
		return fmt.Errorf("execution.promote_interval must be > 0")
	}
	if e.SuccessProbability <= 0 || e.SuccessProbability > 1 {
		return fmt.Errorf("execution.success_probability must be in (0,1]")
	}
	return nil
}

func (h *HTTPConfig) validate() error {
	if h.RateLimitPerMin > 0 && h.Burst <= 0 {
		return fmt.Errorf("http.burst must be > 0 when rate limiting is enabled")
	}
	return nil
}

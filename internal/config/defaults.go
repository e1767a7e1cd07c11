package config

import (
	"strings"
	"time"
)

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppLogFormat    = "text"
	defaultAppHTTPAddr     = ":9991"
	defaultMEVWeight       = 0.5
	defaultProfitWeight    = 0.5
	defaultRiskPenalty     = 0.5
	defaultWaitPenalty     = 2.0
	defaultGasPenalty      = 0.5
	defaultStepDelay       = 2 * time.Second
	defaultHistoryLimit    = 10
	defaultScheduleHorizon = 15 * time.Minute
	defaultPromoteInterval = 30 * time.Second
	defaultSuccessProb     = 0.95
	defaultRateLimitPerMin = 60
	defaultRateBurst       = 10
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Scoring.applyDefaults(keys)
	c.Execution.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (s *ScoringConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("scoring.mev_weight", &s.MEVWeight, defaultMEVWeight),
		floatFieldDefault("scoring.profit_weight", &s.ProfitWeight, defaultProfitWeight),
		floatFieldDefault("scoring.risk_penalty", &s.RiskPenalty, defaultRiskPenalty),
		floatFieldDefault("scoring.wait_penalty", &s.WaitPenalty, defaultWaitPenalty),
		floatFieldDefault("scoring.gas_penalty", &s.GasPenalty, defaultGasPenalty),
	)
}

func (e *ExecutionConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		durationFieldDefault("execution.step_delay", &e.StepDelay, defaultStepDelay),
		durationFieldDefault("execution.schedule_horizon", &e.ScheduleHorizon, defaultScheduleHorizon),
		durationFieldDefault("execution.promote_interval", &e.PromoteInterval, defaultPromoteInterval),
		floatFieldDefault("execution.success_probability", &e.SuccessProbability, defaultSuccessProb),
		fieldDefault{
			key:   "execution.history_limit",
			need:  func() bool { return e.HistoryLimit <= 0 },
			apply: func() { e.HistoryLimit = defaultHistoryLimit },
		},
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "http.rate_limit_per_min",
			need:  func() bool { return h.RateLimitPerMin == 0 },
			apply: func() { h.RateLimitPerMin = defaultRateLimitPerMin },
		},
		fieldDefault{
			key:   "http.burst",
			need:  func() bool { return h.Burst <= 0 },
			apply: func() { h.Burst = defaultRateBurst },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}

func durationFieldDefault(key string, target *time.Duration, def time.Duration) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

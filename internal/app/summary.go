package app

import (
	"fmt"
	"strings"

	"payguard/internal/config"
	"payguard/internal/logger"
)

type StartupSummary struct {
	Env       string
	HTTPAddr  string
	LogLevel  string
	Scoring   config.ScoringConfig
	Execution config.ExecutionConfig
	HTTP      config.HTTPConfig
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	title := "STARTUP SUMMARY"
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[APP]\n")
	fmt.Fprintf(&b, "  env: %s\n", s.Env)
	fmt.Fprintf(&b, "  http: %s\n", s.HTTPAddr)
	fmt.Fprintf(&b, "  log level: %s\n\n", s.LogLevel)

	b.WriteString("[SCORING]\n")
	fmt.Fprintf(&b, "  balanced weights: mev=%.2f profit=%.2f\n", s.Scoring.MEVWeight, s.Scoring.ProfitWeight)
	fmt.Fprintf(&b, "  profit penalties: risk=%.2f wait=%.2f gas=%.2f\n\n", s.Scoring.RiskPenalty, s.Scoring.WaitPenalty, s.Scoring.GasPenalty)

	b.WriteString("[EXECUTION]\n")
	fmt.Fprintf(&b, "  step delay: %s\n", s.Execution.StepDelay)
	fmt.Fprintf(&b, "  schedule horizon: %s (checked every %s)\n", s.Execution.ScheduleHorizon, s.Execution.PromoteInterval)
	fmt.Fprintf(&b, "  history limit: %d\n", s.Execution.HistoryLimit)
	fmt.Fprintf(&b, "  simulation success probability: %.2f\n\n", s.Execution.SuccessProbability)

	b.WriteString("[HTTP]\n")
	if s.HTTP.RateLimitPerMin > 0 {
		fmt.Fprintf(&b, "  submit rate limit: %d/min (burst %d)\n", s.HTTP.RateLimitPerMin, s.HTTP.Burst)
	} else {
		b.WriteString("  submit rate limit: off\n")
	}
	b.WriteString(strings.Repeat("=", 80) + "\n")
	return b.String()
}

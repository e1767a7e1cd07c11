package app

import (
	"fmt"

	"payguard/internal/config"
	"payguard/internal/decision"
	"payguard/internal/execution"
	"payguard/internal/logger"
	"payguard/internal/scoring"
	apihttp "payguard/internal/transport/http/api"
)

func weightsFromConfig(cfg config.ScoringConfig) decision.Weights {
	return decision.Weights{MEV: cfg.MEVWeight, Profit: cfg.ProfitWeight}
}

func penaltiesFromConfig(cfg config.ScoringConfig) scoring.Penalties {
	return scoring.PenaltiesFromFloats(cfg.RiskPenalty, cfg.WaitPenalty, cfg.GasPenalty)
}

func provideDecisionService(cfg *config.Config) *decision.Service {
	return decision.NewService(weightsFromConfig(cfg.Scoring), penaltiesFromConfig(cfg.Scoring))
}

func provideExecutionManager(cfg *config.Config) *execution.Manager {
	ec := cfg.Execution
	return execution.NewManager(execution.Options{
		StepDelay:          ec.StepDelay,
		HistoryLimit:       ec.HistoryLimit,
		ScheduleHorizon:    ec.ScheduleHorizon,
		SuccessProbability: ec.SuccessProbability,
	})
}

func provideHTTPServer(cfg *config.Config, svc *decision.Service, mgr *execution.Manager) (*apihttp.Server, error) {
	srv, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:            cfg.App.HTTPAddr,
		Recommender:     svc,
		Executions:      mgr,
		RateLimitPerMin: cfg.HTTP.RateLimitPerMin,
		Burst:           cfg.HTTP.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}
	return srv, nil
}

func provideSummary(cfg *config.Config) *StartupSummary {
	return &StartupSummary{
		Env:       cfg.App.Env,
		HTTPAddr:  cfg.App.HTTPAddr,
		LogLevel:  cfg.App.LogLevel,
		Scoring:   cfg.Scoring,
		Execution: cfg.Execution,
		HTTP:      cfg.HTTP,
	}
}

func newApp(cfg *config.Config, svc *decision.Service, mgr *execution.Manager, srv *apihttp.Server, summary *StartupSummary) *App {
	mgr.AddListener(func(evt execution.Event) {
		if evt.Step >= 0 {
			return
		}
		logger.Debugf("[app] execution %s %s -> %s", evt.ExecutionID, orDash(string(evt.From)), evt.To)
	})
	return &App{cfg: cfg, decisions: svc, executions: mgr, httpSrv: srv, Summary: summary}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package app

import (
	"context"
	"fmt"
	"time"

	"payguard/internal/config"
	"payguard/internal/decision"
	"payguard/internal/execution"
	"payguard/internal/logger"
	"payguard/internal/scheduler"
	apihttp "payguard/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App wires the decision service, the execution manager and the HTTP API.
type App struct {
	cfg        *config.Config
	decisions  *decision.Service
	executions *execution.Manager
	httpSrv    *apihttp.Server
	Summary    *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(cfg)
}

// Run serves HTTP and promotes due scheduled executions until ctx is done.
// In-flight executions are stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.executions.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		sched := scheduler.NewIntervalScheduler(ctx, "promote-scheduled", a.cfg.Execution.PromoteInterval)
		sched.RunImmediately = true
		sched.Start(a.promoteDue)
		return nil
	})
	return group.Wait()
}

func (a *App) promoteDue(now time.Time) {
	for _, rec := range a.executions.PromoteDue(now) {
		logger.Infof("[app] scheduled execution %s started (scheduled_for=%s)", rec.ID, rec.ScheduledFor.Format(time.RFC3339))
	}
}

// ApplyConfig hot-swaps the settings that can change without a restart:
// log level, aggregation weights and profit-score penalties.
func (a *App) ApplyConfig(cfg *config.Config) {
	if a == nil || cfg == nil {
		return
	}
	logger.SetLevel(cfg.App.LogLevel)
	a.decisions.Reconfigure(weightsFromConfig(cfg.Scoring), penaltiesFromConfig(cfg.Scoring))
	logger.Infof("[app] scoring reconfigured mev_weight=%.2f profit_weight=%.2f penalties(risk=%.2f wait=%.2f gas=%.2f)",
		cfg.Scoring.MEVWeight, cfg.Scoring.ProfitWeight, cfg.Scoring.RiskPenalty, cfg.Scoring.WaitPenalty, cfg.Scoring.GasPenalty)
}

// Decisions exposes the decision service.
func (a *App) Decisions() *decision.Service {
	return a.decisions
}

// Executions exposes the execution manager.
func (a *App) Executions() *execution.Manager {
	return a.executions
}

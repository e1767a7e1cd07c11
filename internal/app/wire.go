//go:build wireinject

package app

import (
	"payguard/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(cfg *config.Config) (*App, error) {
	wire.Build(
		provideDecisionService,
		provideExecutionManager,
		provideHTTPServer,
		provideSummary,
		newApp,
	)
	return nil, nil
}

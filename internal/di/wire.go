//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideLedger,
		ProvideTrainingStore,

		// Services
		ProvideScorer,
		ProvideAnalyzer,
		ProvideNotifier,
		ProvideAccounts,
		ProvideStreamBuffer,

		// Use cases
		ProvidePipeline,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

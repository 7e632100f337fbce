//go:build wireinject
// +build wireinject

package di

import (
	"AlphaFuse/pkg/config"
	"AlphaFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideTradeHistory,
		ProvidePositionStore,
		ProvideDecisionSink,
		ProvideMarketStream,

		// Market data
		ProvidePriceCache,
		ProvideTickCollector,

		// Decision core
		ProvideRegistry,
		ProvideSignalProviders,
		ProvideFusionEngine,
		ProvideWeighter,
		ProvidePairFilter,
		ProvideOptimizer,
		ProvideExitController,
		ProvideValidator,

		// Use cases
		ProvideDecisionCycle,
		ProvideExitCycle,
		ProvideFillsHandler,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"FinSignal/pkg/config"
	"FinSignal/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideRecorder,
		ProvideHealthMonitor,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCacheTiers,
		ProvideCacheManager,
		ProvideKafkaProducer,
		ProvideFinnhubREST,

		// Repositories
		ProvideQuoteProvider,
		ProvideNewsProvider,
		ProvideSignalPublisher,

		// Analysis services
		ProvideIndicatorEngine,
		ProvideSentimentEnsemble,
		ProvideSignalGenerator,
		ProvideRateLimiter,

		// Use cases
		ProvideLiveQuotes,
		ProvidePipeline,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

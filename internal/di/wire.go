//go:build wireinject
// +build wireinject

package di

import (
	"AgriPulse/pkg/config"
	"AgriPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
    wire.Build(
        // Ambient
        ProvideKafkaProducer,
        ProvideLogger,
        ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideReferenceStore,
		ProvideInvalidator,
		ProvideAnalysisPublisher,
		ProvidePriceStorage,
		ProvidePricePublisher,
		ProvidePriceStream,

		// Analysis services
		ProvideForecaster,
		ProvideFertilizerClassifier,

        // Use cases
        ProvideMarketAnalyzer,
        ProvidePriceProcessor,
        ProvidePriceCollector,
        ProvideKafkaConsumer,
        ProvideKafkaPricesHandler,

        // Transport and application
        ProvideHTTPHandler,
        ProvideApp,
    )
    return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"ChartDesk/pkg/config"
	"ChartDesk/pkg/server"
)

var metricsSet = wire.NewSet(
	ProvideRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	ProvideMetrics,
	ProvideEndpointMetrics,
)

var infraSet = wire.NewSet(
	ProvideRedis,
	ProvideResponseCache,
	ProvideHTTPClient,
	ProvideMarketProvider,
	ProvideClickHouseClient,
	ProvideCandleArchive,
	ProvideKafkaProducer,
	ProvidePublishPipeline,
	ProvideEventLog,
)

var usecaseSet = wire.NewSet(
	ProvideMarketUseCase,
	ProvideHistoryUseCase,
	ProvideFeedHub,
	ProvideFeedCoordinator,
	ProvideDesk,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		metricsSet,
		infraSet,
		usecaseSet,
		ProvideLimiter,
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"ChartDesk/internal/domain/models"
	"ChartDesk/internal/domain/repository"
	"ChartDesk/internal/handler/api"
	mid "ChartDesk/internal/middleware"
	internalrepo "ChartDesk/internal/repository"
	"ChartDesk/internal/service/cache"
	"ChartDesk/internal/service/eventlog"
	"ChartDesk/internal/service/feedsocket"
	"ChartDesk/internal/service/marketapi"
	svcmetrics "ChartDesk/internal/service/metrics"
	"ChartDesk/internal/service/ratelimit"
	"ChartDesk/internal/service/synthetic"
	"ChartDesk/internal/service/yahoo"
	"ChartDesk/internal/usecase"
	pkgch "ChartDesk/pkg/clickhouse"
	"ChartDesk/pkg/config"
	xhttp "ChartDesk/pkg/http"
	pkgkafka "ChartDesk/pkg/kafka"
	"ChartDesk/pkg/logger"
	"ChartDesk/pkg/metrics"
	"ChartDesk/pkg/server"
)

// ProvideLogger builds the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) repository.Metrics {
	return metrics.New(reg)
}

// ProvideEndpointMetrics creates the per-endpoint outcome collectors.
func ProvideEndpointMetrics(reg prometheus.Registerer) *svcmetrics.Endpoint {
	return svcmetrics.NewEndpoint(reg)
}

// ProvideRedis returns nil when no address is configured.
func ProvideRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// ProvideResponseCache selects the candles response cache; nil disables caching.
func ProvideResponseCache(cfg *config.Config, rdb *redis.Client) cache.BytesCache {
	switch strings.ToLower(cfg.Cache.Backend) {
	case "redis":
		if rdb == nil {
			return nil
		}
		return cache.NewRedisCache(rdb, cfg.Cache.KeyPrefix)
	case "layered":
		if rdb == nil {
			return cache.NewTTLCache()
		}
		return cache.NewLayeredCache(cache.NewTTLCache(), cache.NewRedisCache(rdb, cfg.Cache.KeyPrefix), cfg.Cache.LocalTTL)
	case "none":
		return nil
	default:
		return cache.NewTTLCache()
	}
}

// ProvideHTTPClient creates the outbound client shared by the market provider and the desk's pull channel.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Yahoo.Timeout),
		xhttp.WithUserAgent(cfg.Yahoo.UserAgent),
	)
}

// ProvideMarketProvider creates the upstream candles provider.
func ProvideMarketProvider(cfg *config.Config, client *xhttp.Client) repository.MarketProvider {
	return yahoo.New(client,
		yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
		yahoo.WithSymbolMap(cfg.Yahoo.SymbolMap),
	)
}

// ProvideClickHouseClient creates a ClickHouse client and the candle table. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx, cfg.ClickHouse.Options()...)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		pkgch.CandleSchema(archiveTable(cfg))...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func archiveTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideCandleArchive returns nil when ClickHouse is disabled.
func ProvideCandleArchive(cfg *config.Config, ch *pkgch.Client, log *logger.Logger) repository.CandleArchive {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCandleArchive(ch.DB(), archiveTable(cfg), log)
}

// ProvideKafkaProducer creates a Kafka producer. Nil when disabled.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	opts := append(cfg.Kafka.Options(), pkgkafka.WithMetrics(pkgkafka.NewProducerMetrics(reg)))
	producer, err := pkgkafka.NewProducer(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublishPipeline puts the throttle/retry stage in front of the Kafka publisher.
func ProvidePublishPipeline(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics) *mid.PublishPipeline {
	if producer == nil {
		return nil
	}
	return mid.NewPublishPipeline(internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), m,
		mid.WithMaxRPS(cfg.Pipeline.MaxRPS),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
		mid.WithBackoff(cfg.Pipeline.BackoffMin, cfg.Pipeline.BackoffMax),
	)
}

// ProvideMarketUseCase creates the candles use case with its optional fan-out.
func ProvideMarketUseCase(
	cfg *config.Config,
	provider repository.MarketProvider,
	log *logger.Logger,
	m repository.Metrics,
	respCache cache.BytesCache,
	archive repository.CandleArchive,
	pipe *mid.PublishPipeline,
) *usecase.MarketCandlesUseCase {
	var opts []usecase.MarketOption
	if respCache != nil {
		opts = append(opts, usecase.WithResponseCache(respCache, cfg.Cache.TTL))
	}
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}
	if pipe != nil {
		opts = append(opts, usecase.WithPublisher(pipe))
	}
	return usecase.NewMarketCandlesUseCase(provider, log, m, opts...)
}

// ProvideHistoryUseCase creates the archive query use case.
func ProvideHistoryUseCase(archive repository.CandleArchive) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(archive)
}

// ProvideFeedHub creates the /ws/feed broadcaster over the market use case.
func ProvideFeedHub(cfg *config.Config, market *usecase.MarketCandlesUseCase, log *logger.Logger, m repository.Metrics) *usecase.FeedHub {
	return usecase.NewFeedHub(market, log, m,
		usecase.WithHubSchedule(cfg.Hub.Schedule),
		usecase.WithHubSendBuffer(cfg.Hub.SendBuffer),
	)
}

// ProvideEventLog opens the configured event log backend.
func ProvideEventLog(cfg *config.Config, rdb *redis.Client) (repository.EventLog, error) {
	events, err := eventlog.New(cfg.EventLog, rdb)
	if err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}
	return events, nil
}

// ProvideFeedCoordinator creates the desk's push/pull feed.
func ProvideFeedCoordinator(cfg *config.Config, client *xhttp.Client, log *logger.Logger, m repository.Metrics) *usecase.FeedCoordinator {
	opts := []usecase.FeedOption{
		usecase.WithPollInterval(cfg.Desk.PollInterval),
		usecase.WithReconnectDelay(cfg.Desk.ReconnectDelay),
	}
	if cfg.Desk.FeedWSURL != "" {
		opts = append(opts, usecase.WithWebSocketURL(cfg.Desk.FeedWSURL))
	}
	return usecase.NewFeedCoordinator(
		marketapi.New(cfg.Desk.MarketAPIURL, client),
		feedsocket.NewDialer(log, feedsocket.WithPingInterval(cfg.Desk.PingInterval)),
		log, m, opts...,
	)
}

// ProvideDesk creates the desk session.
func ProvideDesk(cfg *config.Config, feed *usecase.FeedCoordinator, events repository.EventLog, log *logger.Logger, m repository.Metrics) *usecase.Desk {
	return usecase.NewDesk(feed, events, log, m,
		usecase.WithDeskSymbol(strings.ToUpper(cfg.Desk.Symbol), synthetic.ParseHorizon(cfg.Desk.Horizon), cfg.Desk.Interval),
		usecase.WithDeskTheme(models.Theme(cfg.Desk.Theme)),
		usecase.WithDeskRisk(models.RiskParams{
			StopLossPct:     cfg.Desk.StopLossPct,
			TargetReturnPct: cfg.Desk.TargetReturnPct,
		}),
	)
}

// ProvideLimiter returns nil when rate limiting is disabled.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.NewFromConfig(cfg.RateLimit)
}

// ProvideHandlers collects the route groups registered on the server.
func ProvideHandlers(
	cfg *config.Config,
	log *logger.Logger,
	market *usecase.MarketCandlesUseCase,
	history *usecase.HistoryUseCase,
	endpoint *svcmetrics.Endpoint,
	limiter *ratelimit.Limiter,
	hub *usecase.FeedHub,
	desk *usecase.Desk,
) []xhttp.Handler {
	handlers := []xhttp.Handler{
		api.NewMarketEchoHandler(log, market, history, endpoint, limiter),
		api.NewFeedWSHandler(log, hub),
	}
	if cfg.Desk.Enabled {
		handlers = append(handlers, api.NewDeskEchoHandler(log, desk))
	}
	return handlers
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, reg *prometheus.Registry, handlers []xhttp.Handler) *xhttp.Server {
	return xhttp.NewServer(log, reg, reg, handlers, xhttp.WithConfig(cfg.Server))
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	hub *usecase.FeedHub,
	desk *usecase.Desk,
	pipe *mid.PublishPipeline,
	rdb *redis.Client,
	ch *pkgch.Client,
	archive repository.CandleArchive,
	events repository.EventLog,
) *server.App {
	opts := []server.Option{
		server.WithHub(hub),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout + 5*time.Second),
	}
	if cfg.Desk.Enabled {
		opts = append(opts, server.WithDesk(desk))
	}
	// Closed in reverse: the event log goes before the redis client it may use.
	if rdb != nil {
		opts = append(opts, server.WithCloser("redis", rdb))
	}
	opts = append(opts, server.WithCloser("events", events))
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch))
	}
	if archive != nil {
		opts = append(opts, server.WithCloser("archive", archive))
	}
	if pipe != nil {
		opts = append(opts, server.WithPipeline(pipe), server.WithCloser("publisher", pipe))
	}
	return server.New(log, srv, opts...)
}

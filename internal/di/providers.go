package di

import (
	"context"
	"fmt"
	"time"

	drepo "AlphaFuse/internal/domain/repository"
	dservice "AlphaFuse/internal/domain/service"
	"AlphaFuse/internal/exitpolicy"
	"AlphaFuse/internal/fusion"
	"AlphaFuse/internal/handler/api"
	mid "AlphaFuse/internal/middleware"
	"AlphaFuse/internal/pairfilter"
	"AlphaFuse/internal/performance"
	internalrepo "AlphaFuse/internal/repository"
	"AlphaFuse/internal/riskreward"
	"AlphaFuse/internal/service/marketdata"
	"AlphaFuse/internal/services/providers"
	"AlphaFuse/internal/usecase"
	"AlphaFuse/internal/validation"
	pkgcache "AlphaFuse/pkg/cache"
	pkgch "AlphaFuse/pkg/clickhouse"
	"AlphaFuse/pkg/config"
	xhttp "AlphaFuse/pkg/http"
	pkgkafka "AlphaFuse/pkg/kafka"
	applogger "AlphaFuse/pkg/logger"
	"AlphaFuse/pkg/metrics"
	"AlphaFuse/pkg/server"
)

// ProvideLogger creates the shared application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and prepares the
// trade-fills schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append(
		[]string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database)},
		internalrepo.TradeFillsSchema...,
	)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the fills consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCache creates the Redis cache shared by the performance weighter and
// the position store.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideTradeHistory creates the ClickHouse-backed trade history.
func ProvideTradeHistory(chClient *pkgch.Client, cfg *config.Config) drepo.TradeHistory {
	table := cfg.ClickHouse.Table
	if table == "" {
		table = "trade_fills"
	}
	return internalrepo.NewClickHouseTradeHistory(chClient.DB(), cfg.ClickHouse.Database+"."+table)
}

// ProvidePositionStore creates the Redis-backed position store.
func ProvidePositionStore(c pkgcache.Service) drepo.PositionStore {
	return internalrepo.NewRedisPositionStore(c)
}

// ProvideDecisionSink creates the Kafka decision sink.
func ProvideDecisionSink(producer *pkgkafka.Producer, cfg *config.Config) drepo.DecisionSink {
	return internalrepo.NewKafkaDecisionSink(producer, cfg.Kafka.DecisionTopic, cfg.Kafka.ExitTopic)
}

// ProvideMarketStream creates the exchange WebSocket stream.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) drepo.MarketStream {
	return marketdata.NewStream(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.Symbols,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		l,
	)
}

// ProvidePriceCache creates the in-memory quote and volatility cache.
func ProvidePriceCache(cfg *config.Config) *marketdata.PriceCache {
	pc := marketdata.DefaultPriceCacheConfig()
	if cfg.MarketData.StaleAfter > 0 {
		pc.StaleAfter = cfg.MarketData.StaleAfter
	}
	if cfg.MarketData.VolatilityWindow > 0 {
		pc.VolatilityWindow = cfg.MarketData.VolatilityWindow
	}
	return marketdata.NewPriceCache(pc)
}

// ProvideTickCollector creates the stream-to-cache collector with the
// realtime pipeline in between.
func ProvideTickCollector(
	stream drepo.MarketStream,
	cache *marketdata.PriceCache,
	m drepo.Metrics,
	cfg *config.Config,
) *marketdata.TickCollector {
	opts := []mid.PipelineOption{mid.WithBufferSize(2000)}
	if cfg.MarketData.MaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.MarketData.MaxRPS))
	}
	pipe := mid.NewRealtimePipeline(cache, m, opts...)
	return marketdata.NewTickCollector(stream, cache, m, pipe)
}

// ProvideRegistry builds the provider-class registry from configuration.
func ProvideRegistry(cfg *config.Config) *fusion.Registry {
	classes := make(map[string]fusion.ProviderClass, len(cfg.Providers))
	for _, p := range cfg.Providers {
		classes[p.SystemID] = fusion.ProviderClass(p.Class)
	}
	return fusion.NewRegistry(classes)
}

// ProvideSignalProviders builds the predictive-system clients.
func ProvideSignalProviders(cfg *config.Config) []dservice.SignalProvider {
	out := make([]dservice.SignalProvider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		out = append(out, providers.NewHTTPSignalProvider(providers.ProviderConfig{
			SystemID: p.SystemID,
			BaseURL:  p.BaseURL,
			Class:    p.Class,
			Timeout:  p.Timeout,
			Retries:  p.Retries,
		}))
	}
	return out
}

// ProvideFusionEngine creates the tensor fusion engine.
func ProvideFusionEngine(reg *fusion.Registry, l *applogger.Logger) *fusion.Engine {
	return fusion.NewEngine(fusion.DefaultConfig(), reg, l)
}

// ProvideWeighter creates the performance weighter.
func ProvideWeighter(history drepo.TradeHistory, c pkgcache.Service, cfg *config.Config, l *applogger.Logger) *performance.Weighter {
	pc := performance.DefaultConfig()
	if cfg.Performance.HistoryLimit > 0 {
		pc.HistoryLimit = cfg.Performance.HistoryLimit
	}
	if cfg.Performance.CacheTTL > 0 {
		pc.CacheTTL = cfg.Performance.CacheTTL
	}
	if cfg.Performance.MinTrades > 0 {
		pc.MinTrades = cfg.Performance.MinTrades
	}
	return performance.NewWeighter(history, c, pc, l)
}

// ProvidePairFilter creates the adaptive pair filter.
func ProvidePairFilter(history drepo.TradeHistory, cfg *config.Config, l *applogger.Logger) *pairfilter.Filter {
	fc := pairfilter.DefaultConfig()
	if cfg.Performance.HistoryLimit > 0 {
		fc.HistoryLimit = cfg.Performance.HistoryLimit
	}
	return pairfilter.NewFilter(history, fc, l)
}

// ProvideOptimizer creates the risk-reward optimizer.
func ProvideOptimizer(l *applogger.Logger) *riskreward.Optimizer {
	return riskreward.NewOptimizer(riskreward.DefaultConfig(), l)
}

// ProvideExitController creates the time-weighted exit controller.
func ProvideExitController(cfg *config.Config, l *applogger.Logger) *exitpolicy.Controller {
	ec := exitpolicy.DefaultConfig()
	if cfg.Exit.BaseThreshold > 0 {
		ec.BaseThreshold = cfg.Exit.BaseThreshold
	}
	if cfg.Exit.HardExitScore > 0 {
		ec.HardExitScore = cfg.Exit.HardExitScore
	}
	return exitpolicy.NewController(ec, l)
}

// ProvideValidator creates the strict trade validator.
func ProvideValidator(cfg *config.Config, l *applogger.Logger) *validation.Validator {
	vc := validation.DefaultConfig()
	if cfg.Validation.MaxTradesPerHour > 0 {
		vc.MaxTradesPerHour = cfg.Validation.MaxTradesPerHour
	}
	if cfg.Validation.MinInterval > 0 {
		vc.MinInterval = cfg.Validation.MinInterval
	}
	if cfg.Validation.MinScore > 0 {
		vc.MinScore = cfg.Validation.MinScore
	}
	return validation.NewValidator(vc, l)
}

// ProvideDecisionCycle wires the full entry pipeline.
func ProvideDecisionCycle(
	cfg *config.Config,
	sp []dservice.SignalProvider,
	engine *fusion.Engine,
	weighter *performance.Weighter,
	filter *pairfilter.Filter,
	optimizer *riskreward.Optimizer,
	validator *validation.Validator,
	cache *marketdata.PriceCache,
	sink drepo.DecisionSink,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.DecisionCycle {
	dc := usecase.DefaultDecisionCycleConfig()
	dc.Symbols = cfg.MarketData.Symbols
	if cfg.Decision.Interval > 0 {
		dc.Interval = cfg.Decision.Interval
	}
	if cfg.Decision.CycleTimeout > 0 {
		dc.CycleTimeout = cfg.Decision.CycleTimeout
	}
	if cfg.Decision.ProviderTimeout > 0 {
		dc.ProviderTimeout = cfg.Decision.ProviderTimeout
	}
	if cfg.Decision.CommissionFraction > 0 {
		dc.CommissionFraction = cfg.Decision.CommissionFraction
	}
	if cfg.Decision.CommissionUSD > 0 {
		dc.CommissionUSD = cfg.Decision.CommissionUSD
	}
	if cfg.Decision.MaxStaleReads > 0 {
		dc.MaxStaleReads = cfg.Decision.MaxStaleReads
	}
	return usecase.NewDecisionCycle(dc, sp, engine, weighter, filter, optimizer, validator, cache, sink, m, l)
}

// ProvideExitCycle wires the open-position sweep.
func ProvideExitCycle(
	cfg *config.Config,
	sp []dservice.SignalProvider,
	reg *fusion.Registry,
	controller *exitpolicy.Controller,
	positions drepo.PositionStore,
	cache *marketdata.PriceCache,
	sink drepo.DecisionSink,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.ExitCycle {
	ec := usecase.DefaultExitCycleConfig()
	if cfg.Exit.Interval > 0 {
		ec.Interval = cfg.Exit.Interval
	}
	if cfg.Exit.SweepTimeout > 0 {
		ec.SweepTimeout = cfg.Exit.SweepTimeout
	}
	if cfg.Decision.ProviderTimeout > 0 {
		ec.ProviderTimeout = cfg.Decision.ProviderTimeout
	}
	return usecase.NewExitCycle(ec, sp, reg, controller, positions, cache, sink, m, l)
}

// ProvideFillsHandler registers the handler for the fills topic.
func ProvideFillsHandler(
	cfg *config.Config,
	history drepo.TradeHistory,
	weighter *performance.Weighter,
	filter *pairfilter.Filter,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.FillsHandler {
	return usecase.NewFillsHandler(cfg.Kafka.FillsTopic, history, weighter, filter, m, l)
}

// ProvideHTTPHandler creates the operator API handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	decisions *usecase.DecisionCycle,
	weighter *performance.Weighter,
	filter *pairfilter.Filter,
	history drepo.TradeHistory,
	positions drepo.PositionStore,
) xhttp.Handler {
	return api.NewDecisionsEchoHandler(l, decisions, weighter, filter, history, positions)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *marketdata.TickCollector,
	decisions *usecase.DecisionCycle,
	exits *usecase.ExitCycle,
	consumer *pkgkafka.Consumer,
	fills *usecase.FillsHandler,
	sink drepo.DecisionSink,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, decisions, exits, consumer, fills, sink, chClient)
	app.SetHTTPHandler(handler)
	return app
}

package di

import (
    "context"
    "fmt"
    "time"

    "AgriPulse/internal/domain/repository"
    domsvc "AgriPulse/internal/domain/service"
    "AgriPulse/internal/handler/api"
    mid "AgriPulse/internal/middleware"
    internalrepo "AgriPulse/internal/repository"
    "AgriPulse/internal/service/pricefeed"
    "AgriPulse/internal/services/fertilizer"
    "AgriPulse/internal/services/forecast"
    "AgriPulse/internal/services/market"
    "AgriPulse/internal/usecase"
    "AgriPulse/pkg/cache"
    pkgch "AgriPulse/pkg/clickhouse"
    "AgriPulse/pkg/config"
    xhttp "AgriPulse/pkg/http"
    pkgkafka "AgriPulse/pkg/kafka"
    "AgriPulse/pkg/logger"
    "AgriPulse/pkg/metrics"
    "AgriPulse/pkg/server"
)

const (
	schemaTimeout = 10 * time.Second
	seedTimeout   = 2 * time.Minute
)

// ProvideLogger builds the application logger. Error logs are also shipped to
// log.collect_topic when Kafka is configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.CollectTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval: cfg.Log.CollectInterval,
			Topic:        cfg.Log.CollectTopic,
			Publisher:    producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects, creates the reference schema and, when
// data.seed is set, imports the CSV tables. Nil when nothing needs ClickHouse.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouseEnabled() {
		return nil, nil
	}
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

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	if cfg.Data.Seed {
		if err := seedClickHouse(client, cfg.Data.Dir); err != nil {
			_ = client.Close()
			return nil, err
		}
		l.Info("clickhouse seeded from csv", logger.String("dir", cfg.Data.Dir))
	}
	return client, nil
}

func seedClickHouse(client *pkgch.Client, dir string) error {
	src, err := internalrepo.NewCSVReferenceStore(dir)
	if err != nil {
		return fmt.Errorf("seed source: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()
	if err := internalrepo.ImportReference(ctx, client, src); err != nil {
		return fmt.Errorf("seed clickhouse: %w", err)
	}
	return nil
}

// ProvideKafkaProducer creates a Kafka producer. Nil when no broker is configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.KafkaEnabled() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
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

// ProvideCache builds the reference cache selected by cache.type. Nil for "none".
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Type {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Type == "layered" {
		return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize)), nil
	}
	return rc, nil
}

// ProvideReferenceStore selects the CSV or ClickHouse store and wraps it in the cache.
func ProvideReferenceStore(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *logger.Logger) (repository.ReferenceStore, error) {
	var store repository.ReferenceStore
	switch cfg.Data.Source {
	case config.DataSourceClickHouse:
		chs := internalrepo.NewCHReferenceStore(ch)
		chs.SetLogger(l)
		store = chs
	default:
		csv, err := internalrepo.NewCSVReferenceStore(cfg.Data.Dir)
		if err != nil {
			return nil, fmt.Errorf("reference store: %w", err)
		}
		csv.SetLogger(l)
		store = csv
	}
	if c == nil {
		return store, nil
	}
	return internalrepo.NewCachedReferenceStore(store, c, cfg.Cache.TTL), nil
}

// ProvideInvalidator exposes the reference cache to the ingest path. Nil when uncached.
func ProvideInvalidator(store repository.ReferenceStore) usecase.Invalidator {
	if inv, ok := store.(usecase.Invalidator); ok {
		return inv
	}
	return nil
}

// ProvideForecaster returns the in-process seasonal model or the remote sidecar.
func ProvideForecaster(cfg *config.Config) domsvc.Forecaster {
	if cfg.Forecast.Mode == config.ModeRemote {
		return forecast.NewHTTPForecaster(cfg.Forecast.ServiceURL, cfg.Forecast.Timeout, cfg.Forecast.Retries+1)
	}
	return forecast.NewSeasonalForecaster(
		forecast.WithMinObservations(cfg.Forecast.MinObservations),
		forecast.WithFourierOrder(cfg.Forecast.FourierOrder),
		forecast.WithIntervalWidth(cfg.Forecast.IntervalWidth),
	)
}

// ProvideFertilizerClassifier loads the decision tree or targets the remote sidecar.
func ProvideFertilizerClassifier(cfg *config.Config) (domsvc.FertilizerClassifier, error) {
	if cfg.Fertilizer.Mode == config.ModeRemote {
		return fertilizer.NewHTTPClassifier(cfg.Fertilizer.ServiceURL, cfg.Fertilizer.Timeout), nil
	}
	m, err := fertilizer.LoadModel(cfg.Fertilizer.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("fertilizer model: %w", err)
	}
	return m, nil
}

// ProvideAnalysisPublisher publishes analysis events when Kafka is configured.
func ProvideAnalysisPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AnalysisPublisher {
	if producer == nil || cfg.Kafka.AnalysisTopic == "" {
		return internalrepo.NopAnalysisPublisher{}
	}
	return internalrepo.NewKafkaAnalysisPublisher(producer, cfg.Kafka.AnalysisTopic)
}

// ProvideMarketAnalyzer creates the market analysis use case.
func ProvideMarketAnalyzer(
	cfg *config.Config,
	store repository.ReferenceStore,
	forecaster domsvc.Forecaster,
	publisher repository.AnalysisPublisher,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.MarketAnalyzer {
	a := usecase.NewMarketAnalyzer(store, forecaster, market.NewScorer(cfg.Market.ProfitReference), publisher, m,
		usecase.AnalyzerConfig{
			Horizon:       cfg.Market.Horizon,
			Workers:       cfg.Market.Workers,
			FailurePolicy: cfg.Market.FailurePolicy,
			Timeout:       cfg.Market.AnalysisTimeout,
		})
	a.SetLogger(l)
	return a
}

// ProvideHTTPHandler registers the API routes.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *logger.Logger,
	analyzer *usecase.MarketAnalyzer,
	store repository.ReferenceStore,
	classifier domsvc.FertilizerClassifier,
	ch *pkgch.Client,
) xhttp.Handler {
	opts := []api.HandlerOption{
		api.WithMaxCrops(cfg.Market.MaxCrops),
		api.WithRateLimit(cfg.Market.RateLimit.RPS, cfg.Market.RateLimit.Burst),
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch))
	}
	return api.NewMarketEchoHandler(l, analyzer, store, classifier, opts...)
}

// ProvidePriceStorage creates the ClickHouse price writer. Nil without ClickHouse.
func ProvidePriceStorage(ch *pkgch.Client) repository.PriceStorage {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseStorage(ch)
}

// ProvidePricePublisher creates the Kafka price publisher. Nil without Kafka.
func ProvidePricePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.PricePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.PriceTopic)
}

// ProvidePriceStream creates the live price feed client.
func ProvidePriceStream(cfg *config.Config, l *logger.Logger) repository.PriceStream {
	c := pricefeed.New(
		cfg.PriceFeed.URL,
		cfg.PriceFeed.Markets,
		cfg.PriceFeed.ReconnectDelay,
		cfg.PriceFeed.PingInterval,
	)
	c.SetLogger(l)
	return c
}

// ProvidePriceProcessor routes live observations to the configured ingest backend.
func ProvidePriceProcessor(
	pub repository.PricePublisher,
	store repository.PriceStorage,
	m repository.Metrics,
	inval usecase.Invalidator,
	cfg *config.Config,
) *usecase.PriceProcessor {
	return usecase.NewPriceProcessor(pub, store, m, cfg.Ingest.Backend).WithInvalidator(inval)
}

// ProvidePriceCollector builds the feed → pipeline → processor chain. Nil when
// ingest is disabled.
func ProvidePriceCollector(
    cfg *config.Config,
    stream repository.PriceStream,
    processor *usecase.PriceProcessor,
    m repository.Metrics,
    l *logger.Logger,
) *usecase.PriceCollector {
    if !cfg.Ingest.Enabled {
        return nil
    }
    pipe := mid.NewRealtimePipeline(processor, m,
        mid.WithMaxRPS(cfg.Ingest.MaxRPS),
        mid.WithBufferSize(cfg.Ingest.BufferSize),
        mid.WithBatching(cfg.Ingest.BatchSize, cfg.Ingest.BatchTimeout),
    )
    c := usecase.NewPriceCollector(stream, pipe, m)
    c.SetLogger(l)
    return c
}

// ProvideKafkaConsumer creates the price topic consumer. Nil unless ingest
// goes through Kafka.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
    if !cfg.Ingest.Enabled || cfg.Ingest.Backend != usecase.BackendKafka {
        return nil, nil
    }
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
    consumer.SetLogger(l)
    consumer.WithConsumerHook(pkgkafka.LoggingHook{Log: l, SlowThreshold: time.Second})
    return consumer, nil
}

// ProvideKafkaPricesHandler stores consumed price observations. Nil without a consumer.
func ProvideKafkaPricesHandler(
    consumer *pkgkafka.Consumer,
    storage repository.PriceStorage,
    m repository.Metrics,
    inval usecase.Invalidator,
    cfg *config.Config,
) pkgkafka.MessageHandler {
    if consumer == nil || storage == nil {
        return nil
    }
    return usecase.NewKafkaPricesHandler(cfg.Kafka.PriceTopic, storage, m, inval)
}

// ProvideApp creates the application and registers resources to release at shutdown.
func ProvideApp(
    cfg *config.Config,
    l *logger.Logger,
    handler xhttp.Handler,
    collector *usecase.PriceCollector,
    consumer *pkgkafka.Consumer,
    kh pkgkafka.MessageHandler,
    ch *pkgch.Client,
    producer *pkgkafka.Producer,
    c cache.Service,
) *server.App {
    app := server.New(cfg, l, handler, collector, consumer, kh)
    if ch != nil {
        app.OnShutdown("clickhouse", ch.Close)
    }
    if producer != nil {
        app.OnShutdown("kafka producer", producer.Close)
        // the log collector publishes through the producer, so stop it first
        app.OnShutdown("log collector", func() error { l.RemoveCollector(); return nil })
    }
    if c != nil {
        app.OnShutdown("cache", c.Close)
    }
    return app
}

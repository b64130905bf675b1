package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DataSourceCSV        = "csv"
	DataSourceClickHouse = "clickhouse"

	ModeLocal  = "local"
	ModeRemote = "remote"

	FailurePerCrop = "per_crop"
	FailureAbort   = "abort"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Log struct {
		Level           string        `yaml:"level"`
		Format          string        `yaml:"format"`
		Output          string        `yaml:"output"`
		CollectTopic    string        `yaml:"collect_topic"`
		CollectInterval time.Duration `yaml:"collect_interval"`
	} `yaml:"log"`
	Data struct {
		Source string `yaml:"source"`
		Dir    string `yaml:"dir"`
		// Seed copies the CSV tables into ClickHouse at startup.
		Seed bool `yaml:"seed"`
	} `yaml:"data"`
	Market struct {
		Horizon         int           `yaml:"horizon"`
		Workers         int           `yaml:"workers"`
		MaxCrops        int           `yaml:"max_crops"`
		FailurePolicy   string        `yaml:"failure_policy"`
		ProfitReference float64       `yaml:"profit_reference"`
		AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"market"`
	Forecast struct {
		Mode            string        `yaml:"mode"`
		ServiceURL      string        `yaml:"service_url"`
		Timeout         time.Duration `yaml:"timeout"`
		Retries         int           `yaml:"retries"`
		MinObservations int           `yaml:"min_observations"`
		FourierOrder    int           `yaml:"fourier_order"`
		IntervalWidth   float64       `yaml:"interval_width"`
	} `yaml:"forecast"`
	Fertilizer struct {
		Mode       string        `yaml:"mode"`
		ModelPath  string        `yaml:"model_path"`
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"fertilizer"`
	Cache struct {
		Type          string        `yaml:"type"`
		TTL           time.Duration `yaml:"ttl"`
		MemoryMaxSize int           `yaml:"memory_max_size"`
		Redis         struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Ingest struct {
		Enabled      bool          `yaml:"enabled"`
		Backend      string        `yaml:"backend"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		MaxRPS       float64       `yaml:"max_rps"`
		BufferSize   int           `yaml:"buffer_size"`
	} `yaml:"ingest"`
	PriceFeed struct {
		URL            string        `yaml:"url"`
		Markets        []string      `yaml:"markets"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"price_feed"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		PriceTopic    string   `yaml:"price_topic"`
		AnalysisTopic string   `yaml:"analysis_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := getenv("DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("FORECAST_SERVICE_URL"); v != "" {
		c.Forecast.ServiceURL = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// ApplyDefaults fills zero values with the service defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:5173"}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.CollectInterval == 0 {
		c.Log.CollectInterval = 30 * time.Second
	}
	if c.Data.Source == "" {
		c.Data.Source = DataSourceCSV
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Market.Horizon == 0 {
		c.Market.Horizon = 3
	}
	if c.Market.Workers == 0 {
		c.Market.Workers = 4
	}
	if c.Market.MaxCrops == 0 {
		c.Market.MaxCrops = 4
	}
	if c.Market.FailurePolicy == "" {
		c.Market.FailurePolicy = FailurePerCrop
	}
	if c.Market.ProfitReference == 0 {
		c.Market.ProfitReference = 100000
	}
	if c.Market.AnalysisTimeout == 0 {
		c.Market.AnalysisTimeout = 20 * time.Second
	}
	if c.Market.RateLimit.RPS == 0 {
		c.Market.RateLimit.RPS = 10
	}
	if c.Market.RateLimit.Burst == 0 {
		c.Market.RateLimit.Burst = 20
	}
	if c.Forecast.Mode == "" {
		c.Forecast.Mode = ModeLocal
	}
	if c.Forecast.Timeout == 0 {
		c.Forecast.Timeout = 5 * time.Second
	}
	if c.Forecast.MinObservations == 0 {
		c.Forecast.MinObservations = 12
	}
	if c.Forecast.FourierOrder == 0 {
		c.Forecast.FourierOrder = 3
	}
	if c.Forecast.IntervalWidth == 0 {
		c.Forecast.IntervalWidth = 0.80
	}
	if c.Fertilizer.Mode == "" {
		c.Fertilizer.Mode = ModeLocal
	}
	if c.Fertilizer.ModelPath == "" {
		c.Fertilizer.ModelPath = "models/fertilizer.json"
	}
	if c.Fertilizer.Timeout == 0 {
		c.Fertilizer.Timeout = 3 * time.Second
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 1000
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "agripulse"
	}
	if c.Ingest.Backend == "" {
		c.Ingest.Backend = DataSourceClickHouse
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = 500
	}
	if c.Ingest.BatchTimeout == 0 {
		c.Ingest.BatchTimeout = time.Second
	}
	if c.Ingest.MaxRPS == 0 {
		c.Ingest.MaxRPS = 50
	}
	if c.Ingest.BufferSize == 0 {
		c.Ingest.BufferSize = 2000
	}
	if c.PriceFeed.ReconnectDelay == 0 {
		c.PriceFeed.ReconnectDelay = 5 * time.Second
	}
	if c.PriceFeed.PingInterval == 0 {
		c.PriceFeed.PingInterval = 30 * time.Second
	}
	if c.Kafka.PriceTopic == "" {
		c.Kafka.PriceTopic = "agri.prices"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "agripulse"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "agripulse"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Data.Source != DataSourceCSV && c.Data.Source != DataSourceClickHouse {
		return fmt.Errorf("data.source must be 'csv' or 'clickhouse', got '%s'", c.Data.Source)
	}
	if c.Data.Source == DataSourceCSV && c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required for csv source")
	}
	if c.Data.Seed && c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required to seed clickhouse")
	}
	if c.Market.Horizon < 1 {
		return fmt.Errorf("market.horizon must be positive, got %d", c.Market.Horizon)
	}
	if c.Market.Workers < 1 {
		return fmt.Errorf("market.workers must be positive, got %d", c.Market.Workers)
	}
	if c.Market.FailurePolicy != FailurePerCrop && c.Market.FailurePolicy != FailureAbort {
		return fmt.Errorf("market.failure_policy must be 'per_crop' or 'abort', got '%s'", c.Market.FailurePolicy)
	}
	if c.Forecast.Mode != ModeLocal && c.Forecast.Mode != ModeRemote {
		return fmt.Errorf("forecast.mode must be 'local' or 'remote', got '%s'", c.Forecast.Mode)
	}
	if c.Forecast.Mode == ModeRemote && c.Forecast.ServiceURL == "" {
		return fmt.Errorf("forecast.service_url is required for remote mode")
	}
	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0,1), got %v", c.Forecast.IntervalWidth)
	}
	if c.Fertilizer.Mode != ModeLocal && c.Fertilizer.Mode != ModeRemote {
		return fmt.Errorf("fertilizer.mode must be 'local' or 'remote', got '%s'", c.Fertilizer.Mode)
	}
	if c.Fertilizer.Mode == ModeRemote && c.Fertilizer.ServiceURL == "" {
		return fmt.Errorf("fertilizer.service_url is required for remote mode")
	}
	switch c.Cache.Type {
	case "none", "memory":
	case "redis", "layered":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for %s cache", c.Cache.Type)
		}
	default:
		return fmt.Errorf("cache.type must be one of none, memory, redis, layered, got '%s'", c.Cache.Type)
	}
	if c.Ingest.Enabled {
		if c.PriceFeed.URL == "" {
			return fmt.Errorf("price_feed.url is required when ingest is enabled")
		}
		if c.Ingest.Backend != "kafka" && c.Ingest.Backend != DataSourceClickHouse {
			return fmt.Errorf("ingest.backend must be 'kafka' or 'clickhouse', got '%s'", c.Ingest.Backend)
		}
		if c.Ingest.Backend == "kafka" && !c.KafkaEnabled() {
			return fmt.Errorf("kafka.brokers is required for kafka ingest backend")
		}
	}
	return nil
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// ClickHouseEnabled reports whether a component needs ClickHouse.
func (c *Config) ClickHouseEnabled() bool {
	return c.Data.Source == DataSourceClickHouse || c.Data.Seed || c.Ingest.Enabled
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

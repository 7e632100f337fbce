package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		DecisionTopic string   `yaml:"decision_topic"`
		ExitTopic     string   `yaml:"exit_topic"`
		FillsTopic    string   `yaml:"fills_topic"`
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
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	MarketData struct {
		APIKey           string        `yaml:"api_key"`
		WebSocketURL     string        `yaml:"websocket_url"`
		Symbols          []string      `yaml:"symbols"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		StaleAfter       time.Duration `yaml:"stale_after"`
		VolatilityWindow int           `yaml:"volatility_window"`
		MaxRPS           int           `yaml:"max_rps"`
	} `yaml:"market_data"`
	Providers []ProviderConfig `yaml:"providers"`
	Decision  struct {
		Interval           time.Duration `yaml:"interval"`
		CycleTimeout       time.Duration `yaml:"cycle_timeout"`
		ProviderTimeout    time.Duration `yaml:"provider_timeout"`
		CommissionFraction float64       `yaml:"commission_fraction"`
		CommissionUSD      float64       `yaml:"commission_usd"`
		MaxStaleReads      int           `yaml:"max_stale_reads"`
	} `yaml:"decision"`
	Exit struct {
		Interval      time.Duration `yaml:"interval"`
		SweepTimeout  time.Duration `yaml:"sweep_timeout"`
		BaseThreshold float64       `yaml:"base_threshold"`
		HardExitScore float64       `yaml:"hard_exit_score"`
	} `yaml:"exit"`
	Performance struct {
		HistoryLimit int           `yaml:"history_limit"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
		MinTrades    int           `yaml:"min_trades"`
	} `yaml:"performance"`
	Validation struct {
		MaxTradesPerHour int           `yaml:"max_trades_per_hour"`
		MinInterval      time.Duration `yaml:"min_interval"`
		MinScore         float64       `yaml:"min_score"`
	} `yaml:"validation"`
}

// ProviderConfig is one predictive system endpoint.
type ProviderConfig struct {
	SystemID string        `yaml:"system_id"`
	BaseURL  string        `yaml:"base_url"`
	Class    string        `yaml:"class"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

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

	if v := os.Getenv("MARKET_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.MarketData.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.MarketData.Symbols) == 0 {
		return fmt.Errorf("market_data.symbols cannot be empty")
	}
	if c.MarketData.APIKey == "" {
		return fmt.Errorf("market_data.api_key is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one signal provider is required")
	}
	for i, p := range c.Providers {
		if p.SystemID == "" || p.BaseURL == "" {
			return fmt.Errorf("providers[%d]: system_id and base_url are required", i)
		}
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.DecisionTopic == "" {
		return fmt.Errorf("kafka.decision_topic is required")
	}
	return nil
}

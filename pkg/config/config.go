package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format"` // json or console; empty follows environment
		// ErrorSink aggregates warn/error lines and ships them to Kafka so
		// operators see recurring failures without scraping stdout.
		ErrorSink struct {
			Enabled       bool          `yaml:"enabled"`
			Topic         string        `yaml:"topic" default:"app.errors"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
			MaxGroups     int           `yaml:"max_groups" default:"128"`
		} `yaml:"error_sink"`
	} `yaml:"logging"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"smsent"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"market.candles"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"smsent"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"10240"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	MarketData struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		// MaxTradeRPS caps accepted trades per symbol per second; zero
		// disables the cap. MaxTradeAge drops trades older than the window,
		// which keeps replayed history out of live candles.
		MaxTradeRPS int           `yaml:"max_trade_rps" default:"50"`
		MaxTradeAge time.Duration `yaml:"max_trade_age" default:"2m"`
	} `yaml:"market_data"`
	Backfill struct {
		Enabled bool          `yaml:"enabled"`
		RestURL string        `yaml:"rest_url"`
		Candles int           `yaml:"candles" default:"500"`
		Timeout time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"backfill"`
	Pipeline struct {
		Timeframes      []string      `yaml:"timeframes"`
		Lookback        int           `yaml:"lookback" default:"300"`
		MinInterval     time.Duration `yaml:"min_interval" default:"5s"`
		Workers         int           `yaml:"workers" default:"4"`
		BufferSize      int           `yaml:"buffer_size" default:"2000"`
		FlushInterval   time.Duration `yaml:"flush_interval" default:"5s"`
		SnapshotTTL     time.Duration `yaml:"snapshot_ttl" default:"5m"`
		PublishEnabled  bool          `yaml:"publish_enabled"`
		PredictionTopic string        `yaml:"prediction_topic" default:"market.predictions"`
	} `yaml:"pipeline"`
	Analysis struct {
		MinCandles          int     `yaml:"min_candles" default:"10"`
		SwingLeftBars       int     `yaml:"swing_left_bars" default:"2"`
		SwingRightBars      int     `yaml:"swing_right_bars" default:"2"`
		ImpulseFactor       float64 `yaml:"impulse_factor" default:"1.5"`
		ImpulseWindow       int     `yaml:"impulse_window" default:"10"`
		MinGapFraction      float64 `yaml:"min_gap_fraction" default:"0.001"`
		ClusterTolerance    float64 `yaml:"cluster_tolerance"`
		ClusterToleranceATR float64 `yaml:"cluster_tolerance_atr" default:"0.5"`
		ATRPeriod           int     `yaml:"atr_period" default:"14"`
	} `yaml:"analysis"`
	Scoring struct {
		BullishThreshold float64            `yaml:"bullish_threshold" default:"0.2"`
		BearishThreshold float64            `yaml:"bearish_threshold" default:"-0.2"`
		Steepness        float64            `yaml:"steepness" default:"2.0"`
		InitialWeights   map[string]float64 `yaml:"initial_weights"`
	} `yaml:"scoring"`
	Verification struct {
		HorizonCandles       int           `yaml:"horizon_candles" default:"12"`
		SignificanceFraction float64       `yaml:"significance_fraction" default:"0.001"`
		TieBreak             string        `yaml:"tie_break" default:"favor-correct"`
		PollInterval         time.Duration `yaml:"poll_interval" default:"30s"`
		BatchSize            int           `yaml:"batch_size" default:"200"`
	} `yaml:"verification"`
	Retraining struct {
		Enabled           bool          `yaml:"enabled"`
		LearningRate      float64       `yaml:"learning_rate" default:"0.25"`
		MaxDelta          float64       `yaml:"max_delta" default:"0.05"`
		MaxWeight         float64       `yaml:"max_weight" default:"1.0"`
		MinTotal          float64       `yaml:"min_total" default:"0.5"`
		MaxTotal          float64       `yaml:"max_total" default:"2.5"`
		DominanceFraction float64       `yaml:"dominance_fraction" default:"0.6"`
		MinSamples        int           `yaml:"min_samples" default:"20"`
		Interval          time.Duration `yaml:"interval" default:"1h"`
		SampleLimit       int           `yaml:"sample_limit" default:"500"`
	} `yaml:"retraining"`
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

	// Fill unset fields from struct defaults
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("MARKET_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.MarketData.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
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
	if c.MarketData.WebSocketURL == "" {
		return fmt.Errorf("market_data.websocket_url is required")
	}
	if len(c.Pipeline.Timeframes) == 0 {
		return fmt.Errorf("pipeline.timeframes cannot be empty")
	}
	if c.Pipeline.Lookback <= 0 {
		return fmt.Errorf("pipeline.lookback must be positive, got %d", c.Pipeline.Lookback)
	}
	if len(c.Scoring.InitialWeights) == 0 {
		return fmt.Errorf("scoring.initial_weights cannot be empty")
	}
	for name, w := range c.Scoring.InitialWeights {
		if w < 0 {
			return fmt.Errorf("scoring.initial_weights[%s] must be non-negative, got %v", name, w)
		}
	}
	switch c.Verification.TieBreak {
	case "", "favor-correct", "favor-incorrect":
	default:
		return fmt.Errorf("verification.tie_break must be 'favor-correct' or 'favor-incorrect', got '%s'", c.Verification.TieBreak)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got '%s'", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got '%s'", c.Logging.Format)
	}
	if c.Logging.ErrorSink.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("logging.error_sink requires kafka brokers")
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
environment: test
server:
  port: 8080
  shutdown_timeout: 5s
clickhouse:
  host: localhost
  port: 9000
  database: smsent
market_data:
  websocket_url: wss://stream.example.com/ws
  symbols: ["EURUSD", "GBPUSD"]
  reconnect_delay: 3s
pipeline:
  timeframes: ["1m", "5m"]
  lookback: 200
scoring:
  bullish_threshold: 0.2
  bearish_threshold: -0.2
  steepness: 2.0
  initial_weights:
    order_blocks: 0.3
    fair_value_gaps: 0.25
verification:
  horizon_candles: 12
  significance_fraction: 0.001
  tie_break: favor-correct
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesAllSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "test" {
		t.Fatalf("unexpected environment %q", cfg.Environment)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.Server.ShutdownTimeout)
	}
	if len(cfg.MarketData.Symbols) != 2 || cfg.MarketData.Symbols[0] != "EURUSD" {
		t.Fatalf("unexpected symbols %v", cfg.MarketData.Symbols)
	}
	if cfg.Pipeline.Lookback != 200 {
		t.Fatalf("unexpected lookback %d", cfg.Pipeline.Lookback)
	}
	if w := cfg.Scoring.InitialWeights["order_blocks"]; w != 0.3 {
		t.Fatalf("unexpected weight %v", w)
	}
	if cfg.Verification.TieBreak != "favor-correct" {
		t.Fatalf("unexpected tie break %q", cfg.Verification.TieBreak)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Fatalf("server read timeout default not applied: %v", cfg.Server.ReadTimeout)
	}
	if cfg.Retraining.MaxDelta != 0.05 {
		t.Fatalf("retraining max delta default not applied: %v", cfg.Retraining.MaxDelta)
	}
	if cfg.Verification.PollInterval != 30*time.Second {
		t.Fatalf("verification poll interval default not applied: %v", cfg.Verification.PollInterval)
	}
	if cfg.Analysis.ATRPeriod != 14 {
		t.Fatalf("analysis atr period default not applied: %d", cfg.Analysis.ATRPeriod)
	}
	// Explicit values win over defaults.
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Fatalf("explicit shutdown timeout overridden: %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadRejectsMissingSymbols(t *testing.T) {
	body := `
environment: test
market_data:
  websocket_url: wss://stream.example.com/ws
pipeline:
  timeframes: ["1m"]
  lookback: 100
scoring:
  initial_weights:
    order_blocks: 0.3
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsBadTieBreak(t *testing.T) {
	body := sampleYAML + `
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Verification.TieBreak = "coin-flip"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected tie break rejection")
	}
}

func TestLoadLoggingDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging level default not applied: %q", cfg.Logging.Level)
	}
	if cfg.Logging.ErrorSink.Enabled {
		t.Fatal("error sink must stay off unless configured")
	}
	if cfg.Logging.ErrorSink.Topic != "app.errors" {
		t.Fatalf("error sink topic default not applied: %q", cfg.Logging.ErrorSink.Topic)
	}
	if cfg.Logging.ErrorSink.FlushInterval != 30*time.Second {
		t.Fatalf("flush interval default not applied: %v", cfg.Logging.ErrorSink.FlushInterval)
	}
}

func TestValidateRejectsSinkWithoutBrokers(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Logging.ErrorSink.Enabled = true
	cfg.Kafka.Brokers = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error sink to require brokers")
	}
	cfg.Kafka.Brokers = []string{"kafka-1:9092"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sink with brokers must validate: %v", err)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected log level rejection")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "BTCUSD,ETHUSD,SOLUSD")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	cfg, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.MarketData.Symbols) != 3 || cfg.MarketData.Symbols[2] != "SOLUSD" {
		t.Fatalf("env symbols not applied: %v", cfg.MarketData.Symbols)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "kafka-1:9092" {
		t.Fatalf("env brokers not applied: %v", cfg.Kafka.Brokers)
	}
}

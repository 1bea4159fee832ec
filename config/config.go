package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"srsignals/internal/candle"
	"srsignals/internal/levels"
)

// Config holds all application configuration. Values come from, in order
// of increasing precedence: built-in defaults, the TOML file named by
// SRS_CONFIG, environment variables (optionally seeded from .env), and
// command-line flags applied by each binary.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Alerts   AlertsConfig   `toml:"alerts"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Log      LogConfig      `toml:"log"`
}

type StorageConfig struct {
	SQLitePath    string `toml:"sqlite_path"`
	RedisAddr     string `toml:"redis_addr"` // empty disables Redis
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	StreamMaxLen  int64  `toml:"stream_max_len"`
}

type ServerConfig struct {
	MetricsAddr string `toml:"metrics_addr"`
	ReplaySize  int    `toml:"replay_size"` // envelopes sent to new WS clients
}

type AlertsConfig struct {
	WebhookURL     string `toml:"webhook_url"`
	TelegramToken  string `toml:"telegram_token"`
	TelegramChatID string `toml:"telegram_chat_id"`
}

type PipelineConfig struct {
	N1                int                    `toml:"n1"`
	N2                int                    `toml:"n2"`
	LevelBackCandles  int                    `toml:"level_back_candles"`
	WindowBackCandles int                    `toml:"window_back_candles"`
	MergeTolerance    float64                `toml:"merge_tolerance"`
	ProximityPct      float64                `toml:"proximity_pct"`
	Boundary          string                 `toml:"boundary"` // truncate | error | skip
	Merge             string                 `toml:"merge"`    // single-pass | fixed-point
	Workers           int                    `toml:"workers"`
	TargetBars        int                    `toml:"target_bars"`
	Rejection         candle.RejectionParams `toml:"rejection"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json | text
}

// Default returns the built-in configuration.
func Default() *Config {
	p := levels.DefaultParams()
	return &Config{
		Storage: StorageConfig{
			SQLitePath:   "data/signals.db",
			StreamMaxLen: 10000,
		},
		Server: ServerConfig{
			MetricsAddr: ":9090",
			ReplaySize:  100,
		},
		Pipeline: PipelineConfig{
			N1:                p.N1,
			N2:                p.N2,
			LevelBackCandles:  p.LevelBackCandles,
			WindowBackCandles: p.WindowBackCandles,
			MergeTolerance:    p.MergeTolerance,
			ProximityPct:      p.ProximityPct,
			Boundary:          p.Boundary.String(),
			Merge:             p.Merge.String(),
			TargetBars:        candle.DefaultTargetBars,
			Rejection:         candle.DefaultRejectionParams(),
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from .env, SRS_CONFIG and the environment.
// A missing .env or an unset SRS_CONFIG is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	cfg := Default()
	if path := os.Getenv("SRS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if _, err := cfg.Params(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.RedisAddr = getEnv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = getEnv("REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.RedisDB = getEnvInt("REDIS_DB", c.Storage.RedisDB)

	c.Server.MetricsAddr = getEnv("METRICS_ADDR", c.Server.MetricsAddr)

	c.Alerts.WebhookURL = getEnv("ALERT_WEBHOOK_URL", c.Alerts.WebhookURL)
	c.Alerts.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Alerts.TelegramToken)
	c.Alerts.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Alerts.TelegramChatID)

	p := &c.Pipeline
	p.N1 = getEnvInt("SRS_N1", p.N1)
	p.N2 = getEnvInt("SRS_N2", p.N2)
	p.LevelBackCandles = getEnvInt("SRS_LEVEL_BACK", p.LevelBackCandles)
	p.WindowBackCandles = getEnvInt("SRS_WINDOW_BACK", p.WindowBackCandles)
	p.MergeTolerance = getEnvFloat("SRS_MERGE_TOLERANCE", p.MergeTolerance)
	p.ProximityPct = getEnvFloat("SRS_PROXIMITY_PCT", p.ProximityPct)
	p.Boundary = getEnv("SRS_BOUNDARY", p.Boundary)
	p.Merge = getEnv("SRS_MERGE", p.Merge)
	p.Workers = getEnvInt("SRS_WORKERS", p.Workers)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Params converts the pipeline section to detector parameters.
func (c *Config) Params() (levels.Params, error) {
	boundary, err := levels.ParseBoundaryPolicy(c.Pipeline.Boundary)
	if err != nil {
		return levels.Params{}, fmt.Errorf("config: %w", err)
	}
	merge, err := levels.ParseMergePolicy(c.Pipeline.Merge)
	if err != nil {
		return levels.Params{}, fmt.Errorf("config: %w", err)
	}
	p := levels.Params{
		N1:                c.Pipeline.N1,
		N2:                c.Pipeline.N2,
		LevelBackCandles:  c.Pipeline.LevelBackCandles,
		WindowBackCandles: c.Pipeline.WindowBackCandles,
		MergeTolerance:    c.Pipeline.MergeTolerance,
		ProximityPct:      c.Pipeline.ProximityPct,
		Boundary:          boundary,
		Merge:             merge,
	}
	if err := p.Validate(); err != nil {
		return levels.Params{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Storage.RedisAddr) != ""
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return f
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"ChartDesk/internal/service/cache"
	"ChartDesk/internal/service/eventlog"
	"ChartDesk/internal/service/ratelimit"
	pkgch "ChartDesk/pkg/clickhouse"
	xhttp "ChartDesk/pkg/http"
	pkgkafka "ChartDesk/pkg/kafka"
	"ChartDesk/pkg/logger"
)

type Config struct {
	Environment string             `yaml:"environment" default:"development" validate:"required"`
	Server      xhttp.ServerConfig `yaml:"server"`
	Logger      logger.Config      `yaml:"logger"`
	Redis       RedisConfig        `yaml:"redis"`
	Cache       cache.Config       `yaml:"cache"`
	RateLimit   ratelimit.Config   `yaml:"rate_limit"`
	EventLog    eventlog.Config    `yaml:"event_log"`
	ClickHouse  pkgch.ClientConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig        `yaml:"kafka"`
	Pipeline    PipelineConfig     `yaml:"pipeline"`
	Yahoo       YahooConfig        `yaml:"yahoo"`
	Hub         HubConfig          `yaml:"hub"`
	Desk        DeskConfig         `yaml:"desk"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig enables the candle series publisher.
type KafkaConfig struct {
	Enabled                 bool `yaml:"enabled"`
	pkgkafka.ProducerConfig `yaml:",inline"`
}

// PipelineConfig tunes the throttle/retry stage in front of the publisher.
type PipelineConfig struct {
	MaxRPS     int           `yaml:"max_rps" default:"5" validate:"gt=0"`
	BufferSize int           `yaml:"buffer_size" default:"256" validate:"gt=0"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
}

type YahooConfig struct {
	BaseURL   string            `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
	Timeout   time.Duration     `yaml:"timeout" default:"10s"`
	UserAgent string            `yaml:"user_agent" default:"Mozilla/5.0 (compatible; ChartDesk/1.0)"`
	SymbolMap map[string]string `yaml:"symbol_map"`
}

// HubConfig drives the /ws/feed broadcaster.
type HubConfig struct {
	Schedule   string `yaml:"schedule" default:"@every 15s"`
	SendBuffer int    `yaml:"send_buffer" default:"8" validate:"gt=0"`
}

// DeskConfig is the in-process desk session and its feed channels.
type DeskConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Symbol          string        `yaml:"symbol" default:"AAPL" validate:"required,max=32"`
	Horizon         string        `yaml:"horizon" default:"week" validate:"oneof=day week month year"`
	Interval        int           `yaml:"interval" default:"5" validate:"gt=0"`
	Theme           string        `yaml:"theme" default:"dark" validate:"oneof=dark light"`
	MarketAPIURL    string        `yaml:"market_api_url" default:"http://localhost:8080" validate:"url"`
	FeedWSURL       string        `yaml:"feed_ws_url"`
	PollInterval    time.Duration `yaml:"poll_interval" default:"30s"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval    time.Duration `yaml:"ping_interval" default:"30s"`
	StopLossPct     float64       `yaml:"stop_loss_pct" default:"2"`
	TargetReturnPct float64       `yaml:"target_return_pct" default:"4"`
}

// Default returns a configuration populated from struct defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if err := c.readFile(path); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), then the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := c.readFile(path); err != nil {
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

func (c *Config) readFile(path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("CHARTDESK_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("DESK_SYMBOL"); v != "" {
		c.Desk.Symbol = v
	}
	if v := getenv("MARKET_API_URL"); v != "" {
		c.Desk.MarketAPIURL = v
	}
	if v := getenv("FEED_WS_URL"); v != "" {
		c.Desk.FeedWSURL = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.needsRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required by the redis cache or event log backend")
	}
	if _, err := cron.ParseStandard(c.Hub.Schedule); err != nil {
		return fmt.Errorf("hub.schedule: %w", err)
	}
	if c.Pipeline.BackoffMin > c.Pipeline.BackoffMax {
		return fmt.Errorf("pipeline.backoff_min must not exceed backoff_max")
	}
	return nil
}

func (c *Config) needsRedis() bool {
	switch strings.ToLower(c.Cache.Backend) {
	case "redis", "layered":
		return true
	}
	return strings.EqualFold(c.EventLog.Backend, eventlog.BackendRedis)
}

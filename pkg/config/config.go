package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the shared prefix for all bot environment variables.
const EnvPrefix = "TEAMBOT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Backend  BackendConfig
	Stream   StreamConfig
	Token    TokenConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TEAMBOT_APP_ENV" default:"dev"`
	OpsPort      string `envconfig:"TEAMBOT_OPS_PORT" default:"8090"`
	LogLevel     string `envconfig:"TEAMBOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TEAMBOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"TEAMBOT_REDIS_URL"`
	Address      string        `envconfig:"TEAMBOT_REDIS_ADDR" default:"redis:6379"`
	Username     string        `envconfig:"TEAMBOT_REDIS_USER"`
	Password     string        `envconfig:"TEAMBOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"TEAMBOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TEAMBOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TEAMBOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TEAMBOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TEAMBOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TEAMBOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type TelegramConfig struct {
	Token       string        `envconfig:"TEAMBOT_TELEGRAM_TOKEN" required:"true"`
	BaseURL     string        `envconfig:"TEAMBOT_TELEGRAM_BASE_URL" default:"https://api.telegram.org"`
	PollTimeout time.Duration `envconfig:"TEAMBOT_TELEGRAM_POLL_TIMEOUT" default:"30s"`
}

type BackendConfig struct {
	BaseURL string        `envconfig:"TEAMBOT_BACKEND_URL" default:"http://backend:8080"`
	Timeout time.Duration `envconfig:"TEAMBOT_BACKEND_TIMEOUT" default:"10s"`
}

// StreamConfig pins the notification stream identity. The group and
// consumer names are part of the deployment contract with the backend
// producer: one group, one consumer, cursor owned by this process.
type StreamConfig struct {
	Name         string        `envconfig:"TEAMBOT_STREAM_NAME" default:"notifications"`
	Group        string        `envconfig:"TEAMBOT_STREAM_GROUP" default:"telegram_bot"`
	Consumer     string        `envconfig:"TEAMBOT_STREAM_CONSUMER" default:"consumer_1"`
	BatchSize    int           `envconfig:"TEAMBOT_STREAM_BATCH_SIZE" default:"10"`
	IdleDelay    time.Duration `envconfig:"TEAMBOT_STREAM_IDLE_DELAY" default:"100ms"`
	RecoverDelay time.Duration `envconfig:"TEAMBOT_STREAM_RECOVER_DELAY" default:"500ms"`
	BackoffDelay time.Duration `envconfig:"TEAMBOT_STREAM_BACKOFF_DELAY" default:"1s"`
}

type TokenConfig struct {
	TTL    time.Duration `envconfig:"TEAMBOT_TOKEN_TTL" default:"600s"`
	Length int           `envconfig:"TEAMBOT_TOKEN_LENGTH" default:"16"`
}

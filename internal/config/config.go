package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"sharpms/dashboard/internal/views"
)

// Polling intervals outside this range are rejected. Zero turns polling
// off for a view.
const (
	MinPollInterval = 2 * time.Second
	MaxPollInterval = 30 * time.Second
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
	Channel  string
}

// APIConfig points at the remote Sharp REST API.
type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

type SessionConfig struct {
	Backend       string
	CookieName    string
	CookieSecret  string
	CookieTTL     time.Duration
	CookieSecure  bool
	StorageSecret string
	StorageTTL    time.Duration
	IdleTimeout   time.Duration
}

type FetchConfig struct {
	RevalidateWindow time.Duration
	Retention        time.Duration
	WatchTTL         time.Duration
}

type RoutesConfig struct {
	Home       string
	Login      string
	Dashboard  string
	Onboarding string
}

type TelemetryConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
}

type QueueConfig struct {
	ClaimInterval time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	API              APIConfig
	Session          SessionConfig
	Fetch            FetchConfig
	Polling          map[string]time.Duration
	Routes           RoutesConfig
	Telemetry        TelemetryConfig
	Queues           QueueConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("SHARP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.baseurl is required"))
	}
	if c.Session.CookieSecret == "" {
		errs = append(errs, errors.New("session.cookiesecret is required"))
	}
	if c.Session.StorageSecret == "" {
		errs = append(errs, errors.New("session.storagesecret is required"))
	}
	switch c.Session.Backend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("session.backend %q is not one of redis, postgres, memory", c.Session.Backend))
	}
	if c.Session.Backend == BackendPostgres && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required for the postgres session backend"))
	}
	registry := views.NewRegistry(nil)
	for view, interval := range c.Polling {
		if _, ok := registry.Lookup(view); !ok {
			errs = append(errs, fmt.Errorf("polling.%s is not a known view", view))
			continue
		}
		if interval != 0 && (interval < MinPollInterval || interval > MaxPollInterval) {
			errs = append(errs, fmt.Errorf("polling.%s must be 0 or between %s and %s, got %s", view, MinPollInterval, MaxPollInterval, interval))
		}
	}
	if _, ok := registry.Lookup(strings.TrimPrefix(c.Routes.Dashboard, "/")); !ok {
		errs = append(errs, fmt.Errorf("routes.dashboard %q does not name a view", c.Routes.Dashboard))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "dashboard:refresh")
	v.SetDefault("redis.group", "dashboard-refreshers")
	v.SetDefault("redis.consumer", "refresher-1")
	v.SetDefault("redis.channel", "dashboard:updates")

	v.SetDefault("api.baseurl", "")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.retrycount", 3)

	v.SetDefault("session.backend", BackendRedis)
	v.SetDefault("session.cookiename", "sharp_device")
	v.SetDefault("session.cookiesecret", "")
	v.SetDefault("session.cookiettl", "8760h") // one year
	v.SetDefault("session.cookiesecure", false)
	v.SetDefault("session.storagesecret", "")
	v.SetDefault("session.storagettl", "720h") // 30 days
	v.SetDefault("session.idletimeout", "30m")

	v.SetDefault("fetch.revalidatewindow", "5m")
	v.SetDefault("fetch.retention", "24h")
	v.SetDefault("fetch.watchttl", "2m")

	v.SetDefault("routes.home", "/")
	v.SetDefault("routes.login", "/login")
	v.SetDefault("routes.dashboard", "/dashboard")
	v.SetDefault("routes.onboarding", "/onboarding")

	v.SetDefault("telemetry.servicename", "sharp-dashboard")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)

	v.SetDefault("queues.claiminterval", "10s")

	v.SetDefault("logging.level", "")

	v.SetDefault("allowcorsorigins", []string{})
}

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
	ProviderExpo = "expo"
	ProviderFCM  = "fcm"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Log       LogConfig
	Push      PushConfig
	Firebase  FirebaseConfig
	Webhook   WebhookConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Listener  ListenerConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type LogConfig struct {
	Level  string
	Format string
}

type PushConfig struct {
	Provider    string
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
	MaxBatch    int
	AppTitle    string
}

type FirebaseConfig struct {
	CredentialsFile string
}

type WebhookConfig struct {
	Secret string
}

type JWTConfig struct {
	Secret string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type ListenerConfig struct {
	Enabled      bool
	EventTimeout time.Duration
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type RateLimitConfig struct {
	DigestPerMinute int
	DigestBurst     int
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

// Load reads configuration from the environment. When CONFIG_FILE points
// to a YAML file its values replace the built-in defaults; environment
// variables still take precedence over both.
func Load() (*Config, error) {
	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	env := envSource{file: file}

	dbPort, err := env.getInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	redisDB, err := env.getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	pushMaxBatch, err := env.getInt("PUSH_MAX_BATCH", 0)
	if err != nil {
		return nil, err
	}
	schedulerWorkers, err := env.getInt("SCHEDULER_WORKERS", 5)
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := env.getInt("SCHEDULER_QUEUE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	digestPerMinute, err := env.getInt("DIGEST_RATE_PER_MINUTE", 6)
	if err != nil {
		return nil, err
	}
	digestBurst, err := env.getInt("DIGEST_RATE_BURST", 2)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := env.getDuration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	pushTimeout, err := env.getDuration("PUSH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	redisTTL, err := env.getDuration("REDIS_PROFILE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	listenerTimeout, err := env.getDuration("LISTENER_EVENT_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := env.getDuration("SCHEDULER_JOB_DELAY", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           env.getString("PORT", "8080"),
			Host:           env.getString("HOST", "0.0.0.0"),
			RequestTimeout: requestTimeout,
		},
		Database: DatabaseConfig{
			Host:     env.getString("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     env.getString("DB_USER", "postgres"),
			Password: env.getString("DB_PASSWORD", ""),
			DBName:   env.getString("DB_NAME", "mise"),
			SSLMode:  env.getString("DB_SSLMODE", "disable"),
		},
		Log: LogConfig{
			Level:  env.getString("LOG_LEVEL", "info"),
			Format: env.getString("LOG_FORMAT", "json"),
		},
		Push: PushConfig{
			Provider:    strings.ToLower(env.getString("PUSH_PROVIDER", ProviderExpo)),
			Endpoint:    env.getString("PUSH_ENDPOINT", ""),
			AccessToken: env.getString("PUSH_ACCESS_TOKEN", ""),
			Timeout:     pushTimeout,
			MaxBatch:    pushMaxBatch,
			AppTitle:    env.getString("PUSH_APP_TITLE", "Mise"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: env.getString("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Webhook: WebhookConfig{
			Secret: env.getString("WEBHOOK_SECRET", ""),
		},
		JWT: JWTConfig{
			Secret: env.getString("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Enabled:  env.getBool("REDIS_ENABLED", false),
			Addr:     env.getString("REDIS_ADDR", "localhost:6379"),
			Password: env.getString("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      redisTTL,
		},
		Listener: ListenerConfig{
			Enabled:      env.getBool("LISTENER_ENABLED", false),
			EventTimeout: listenerTimeout,
		},
		Scheduler: SchedulerConfig{
			Enabled:       env.getBool("SCHEDULER_ENABLED", false),
			ScheduleTimes: splitList(env.getString("SCHEDULER_TIMES", "09:00")),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  env.getBool("SCHEDULER_RUN_ON_STARTUP", false),
		},
		RateLimit: RateLimitConfig{
			DigestPerMinute: digestPerMinute,
			DigestBurst:     digestBurst,
		},
		Telemetry: TelemetryConfig{
			Enabled:      env.getBool("OTEL_ENABLED", false),
			ServiceName:  env.getString("OTEL_SERVICE_NAME", "mise-push"),
			Environment:  env.getString("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: env.getString("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  env.getString("METRICS_PORT", "9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.Push.Provider {
	case ProviderExpo:
	case ProviderFCM:
		if c.Firebase.CredentialsFile == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_FILE is required when PUSH_PROVIDER=fcm")
		}
	default:
		return fmt.Errorf("unknown PUSH_PROVIDER %q (expected %s or %s)", c.Push.Provider, ProviderExpo, ProviderFCM)
	}

	if c.Push.MaxBatch < 0 {
		return fmt.Errorf("PUSH_MAX_BATCH must not be negative")
	}
	if c.Scheduler.Enabled && len(c.Scheduler.ScheduleTimes) == 0 {
		return fmt.Errorf("SCHEDULER_TIMES is required when SCHEDULER_ENABLED=true")
	}
	if c.RateLimit.DigestPerMinute <= 0 || c.RateLimit.DigestBurst <= 0 {
		return fmt.Errorf("DIGEST_RATE_PER_MINUTE and DIGEST_RATE_BURST must be positive")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// loadFile reads a flat YAML map of the same keys as the environment,
// e.g. `PUSH_PROVIDER: fcm`.
func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return values, nil
}

// envSource resolves a key from the environment, then the config file,
// then the default.
type envSource struct {
	file map[string]string
}

func (s envSource) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s envSource) getString(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s envSource) getInt(key string, defaultValue int) (int, error) {
	value := s.lookup(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func (s envSource) getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := s.lookup(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func (s envSource) getBool(key string, defaultValue bool) bool {
	value := s.lookup(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

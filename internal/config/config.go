package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Events    EventsConfig
	Auth      AuthConfig
	Mail      MailConfig
	Editing   EditingConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	StaticDir       string
	AllowedOrigins  []string
	MaxBodyBytes    int64
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
	Migrate  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host       string
	Port       int
	Password   string
	DB         int
	StickerTTL time.Duration
}

// StorageConfig holds the save sink configuration.
// Driver is "local" (files under LocalDir) or "minio" (object storage).
type StorageConfig struct {
	Driver          string
	LocalDir        string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	Vhost      string
	EmailQueue string
}

// EventsConfig holds the activity event stream configuration
type EventsConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// AuthConfig holds session and account token configuration
type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	CookieName      string
	CookieSecure    bool
	FrontendURL     string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	RateLimit       float64
	RateBurst       int

	// per address, forgot-password requests in one hour
	ResetRequestsPerHour int64
}

// MailConfig holds SMTP configuration
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

// EditingConfig holds image pipeline configuration
type EditingConfig struct {
	CanvasWidth       int
	CanvasHeight      int
	ThumbnailSize     int
	MinFrameDelay     time.Duration
	MaxFrameDelay     time.Duration
	DefaultFrameDelay time.Duration
	ProcessTimeout    time.Duration
	MaxImageBytes     int
	MaxPixels         int
	MaxFrames         int
	AssetsDir         string
	SavesPerHour      int64 // per user, across save and create-gif
}

// SchedulerConfig holds maintenance scheduling configuration
type SchedulerConfig struct {
	CleanupInterval time.Duration
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// Load reads configuration from file and environment variables.
// Environment variables use the key path with dots replaced by underscores,
// e.g. AUTH_JWTSECRET.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that have no safe default
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret must be set")
	}
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Editing.MinFrameDelay > c.Editing.MaxFrameDelay {
		return fmt.Errorf("editing.minFrameDelay exceeds editing.maxFrameDelay")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "60s")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.staticDir", "./frontend")
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:8080"})
	viper.SetDefault("server.maxBodyBytes", 50*1024*1024) // 50MB, GIF frames are sent inline

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "camagru")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)
	viper.SetDefault("database.migrate", true)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.stickerTTL", "10m")

	// Storage defaults
	viper.SetDefault("storage.driver", "local")
	viper.SetDefault("storage.localDir", "./uploads")
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "camagru")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")
	viper.SetDefault("queue.emailQueue", "camagru.emails")

	// Events defaults
	viper.SetDefault("events.enabled", false)
	viper.SetDefault("events.brokers", []string{"localhost:9092"})
	viper.SetDefault("events.topic", "camagru.activity")

	// Auth defaults
	viper.SetDefault("auth.tokenTTL", "24h")
	viper.SetDefault("auth.cookieName", "authToken")
	viper.SetDefault("auth.cookieSecure", false)
	viper.SetDefault("auth.frontendURL", "http://localhost:8080")
	viper.SetDefault("auth.verificationTTL", "24h")
	viper.SetDefault("auth.resetTTL", "1h")
	viper.SetDefault("auth.rateLimit", 5.0)
	viper.SetDefault("auth.rateBurst", 10)
	viper.SetDefault("auth.resetRequestsPerHour", 3)

	// Mail defaults
	viper.SetDefault("mail.host", "localhost")
	viper.SetDefault("mail.port", 1025)
	viper.SetDefault("mail.from", "Camagru <no-reply@camagru.local>")
	viper.SetDefault("mail.baseURL", "http://localhost:8080")

	// Editing defaults
	viper.SetDefault("editing.canvasWidth", 640)
	viper.SetDefault("editing.canvasHeight", 480)
	viper.SetDefault("editing.thumbnailSize", 100)
	viper.SetDefault("editing.minFrameDelay", "100ms")
	viper.SetDefault("editing.maxFrameDelay", "1s")
	viper.SetDefault("editing.defaultFrameDelay", "200ms")
	viper.SetDefault("editing.processTimeout", "30s")
	viper.SetDefault("editing.maxImageBytes", 10*1024*1024) // 10MB per frame
	viper.SetDefault("editing.maxPixels", 40_000_000)
	viper.SetDefault("editing.maxFrames", 20)
	viper.SetDefault("editing.assetsDir", "./frontend")
	viper.SetDefault("editing.savesPerHour", 60)

	// Scheduler defaults
	viper.SetDefault("scheduler.cleanupInterval", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "camagru")
	viper.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
}

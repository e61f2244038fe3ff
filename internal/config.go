package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Export        ExportConfig        `mapstructure:"export"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	// FieldKey is the base64 Fernet key used for PII columns. Loaded once
	// at startup and immutable for the life of the process; rotation is the
	// rotate-key command, never a live swap.
	FieldKey             string        `mapstructure:"field_key" validate:"required"`
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required,min=32"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type ExportConfig struct {
	// StorageDir is the private root every export file must stay under.
	StorageDir    string        `mapstructure:"storage_dir" validate:"required"`
	LinkTTL       time.Duration `mapstructure:"link_ttl"`
	ElevatedDelay time.Duration `mapstructure:"elevated_delay"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
}

type PrivacyConfig struct {
	SmallCellThreshold int `mapstructure:"small_cell_threshold"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

const (
	DefaultLinkTTL            = 24 * time.Hour
	DefaultElevatedDelay      = 10 * time.Minute
	DefaultGracePeriod        = 24 * time.Hour
	DefaultSmallCellThreshold = 10
)

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds a Config from environment variables for container
// deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			FieldKey:             getEnv("FIELD_ENCRYPTION_KEY", ""),
			AccessTokenSecret:    getEnv("ACCESS_TOKEN_SECRET", ""),
			RefreshTokenSecret:   getEnv("REFRESH_TOKEN_SECRET", ""),
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		Export: ExportConfig{
			StorageDir:    getEnv("EXPORT_STORAGE_DIR", "/var/lib/casevault/exports"),
			LinkTTL:       DefaultLinkTTL,
			ElevatedDelay: DefaultElevatedDelay,
			GracePeriod:   DefaultGracePeriod,
		},
		Privacy: PrivacyConfig{
			SmallCellThreshold: getEnvAsInt("SMALL_CELL_THRESHOLD", DefaultSmallCellThreshold),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Export.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("export config: %v", err))
	}

	if err := c.Privacy.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("privacy config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if _, err := c.GetFieldKey(); err != nil {
		return fmt.Errorf("invalid field encryption key: %w", err)
	}
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access token secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh token secret must be at least 32 characters")
	}
	return nil
}

// GetFieldKey parses and validates the configured Fernet key. An absent or
// malformed key is a configuration error: the encryption-dependent parts of
// the system must not come up without it.
func (c *SecurityConfig) GetFieldKey() (*fernet.Key, error) {
	if c.FieldKey == "" {
		return nil, errors.New("field_key is required")
	}
	key, err := fernet.DecodeKey(c.FieldKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode field key: %w", err)
	}
	return key, nil
}

func (c *ExportConfig) Validate() error {
	if c.StorageDir == "" {
		return errors.New("storage_dir is required")
	}
	if !filepath.IsAbs(c.StorageDir) {
		return fmt.Errorf("storage_dir must be an absolute path, got %s", c.StorageDir)
	}
	return nil
}

// LinkTTLOrDefault returns the configured link TTL, defaulting to 24 hours.
func (c *ExportConfig) LinkTTLOrDefault() time.Duration {
	if c.LinkTTL <= 0 {
		return DefaultLinkTTL
	}
	return c.LinkTTL
}

func (c *ExportConfig) ElevatedDelayOrDefault() time.Duration {
	if c.ElevatedDelay <= 0 {
		return DefaultElevatedDelay
	}
	return c.ElevatedDelay
}

func (c *ExportConfig) GracePeriodOrDefault() time.Duration {
	if c.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return c.GracePeriod
}

func (c *PrivacyConfig) Validate() error {
	if c.SmallCellThreshold < 0 {
		return errors.New("small_cell_threshold cannot be negative")
	}
	return nil
}

func (c *PrivacyConfig) ThresholdOrDefault() int {
	if c.SmallCellThreshold == 0 {
		return DefaultSmallCellThreshold
	}
	return c.SmallCellThreshold
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sms-notify-server/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings
type Config struct {
	Server struct {
		Port         int           `json:"port" yaml:"port"`
		Host         string        `json:"host" yaml:"host"`
		ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
		WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
		MaxBodyBytes int64         `json:"max_body_bytes" yaml:"max_body_bytes"`
		ForceHTTPS   bool          `json:"force_https" yaml:"force_https"` // redirect plain HTTP, honouring X-Forwarded-Proto
	} `json:"server" yaml:"server"`
	Database struct {
		Driver string `json:"driver" yaml:"driver"` // sqlite3 or postgres
		DSN    string `json:"dsn" yaml:"dsn"`
	} `json:"database" yaml:"database"`
	JWT struct {
		Secret      string        `json:"secret" yaml:"secret"`
		TokenExpiry time.Duration `json:"token_expiry" yaml:"token_expiry"`
	} `json:"jwt" yaml:"jwt"`
	Logging struct {
		Level   string `json:"level" yaml:"level"`
		Path    string `json:"path" yaml:"path"`
		Console bool   `json:"console" yaml:"console"`
	} `json:"logging" yaml:"logging"`
	Security struct {
		TOTPEncryptionKey string `json:"totp_encryption_key" yaml:"totp_encryption_key"`
	} `json:"security" yaml:"security"`
	Seed struct {
		Enable        bool   `json:"enable" yaml:"enable"`
		AdminUsername string `json:"admin_username" yaml:"admin_username"`
		AdminEmail    string `json:"admin_email" yaml:"admin_email"`
		AdminPassword string `json:"admin_password" yaml:"admin_password"`
	} `json:"seed" yaml:"seed"`
	Twilio          TwilioConfig `json:"twilio" yaml:"twilio"`
	Redis           RedisConfig  `json:"redis" yaml:"redis"`
	PublicBaseURL   string       `json:"public_base_url" yaml:"public_base_url"`
	DefaultTimezone string       `json:"default_timezone" yaml:"default_timezone"`
}

// TwilioConfig configures the SMS provider client and webhook checks.
type TwilioConfig struct {
	AccountSID          string        `json:"account_sid" yaml:"account_sid"`
	AuthToken           string        `json:"auth_token" yaml:"auth_token"`
	FromNumber          string        `json:"from_number" yaml:"from_number"`
	MessagingServiceSID string        `json:"messaging_service_sid" yaml:"messaging_service_sid"`
	StatusCallbackURL   string        `json:"status_callback_url" yaml:"status_callback_url"`
	APIBaseURL          string        `json:"api_base_url" yaml:"api_base_url"`
	Timeout             time.Duration `json:"timeout" yaml:"timeout"`
	ValidateSignatures  bool          `json:"validate_signatures" yaml:"validate_signatures"`
}

// Enabled reports whether enough is configured to build a provider client.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && (t.FromNumber != "" || t.MessagingServiceSID != "")
}

// RedisConfig configures the optional provider-id lookup cache.
// An empty Address disables it.
type RedisConfig struct {
	Address  string        `json:"address" yaml:"address"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// StatusWebhookPath and InboundWebhookPath are where the provider posts to us.
const (
	InboundWebhookPath = "/webhooks/twilio/sms/"
	StatusWebhookPath  = "/webhooks/twilio/status/"
)

// LoadConfig loads configuration from a JSON or YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("config path must be absolute")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("Failed to close config file", zap.Error(closeErr))
		}
	}()

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	default:
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse json config: %w", err)
		}
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.Port = 8080
	config.Server.Host = "localhost"
	config.Server.ReadTimeout = 15 * time.Second
	config.Server.WriteTimeout = 15 * time.Second
	config.Server.MaxBodyBytes = 1 << 20
	config.Database.Driver = "sqlite3"
	config.Database.DSN = "file:sms.db?cache=shared&mode=rwc"
	config.JWT.Secret = "your-secret-key" // This should be changed in production
	config.JWT.TokenExpiry = 24 * time.Hour
	config.Logging.Level = "info"
	config.Logging.Path = "server.log"
	config.Seed.AdminUsername = "admin"
	config.Seed.AdminEmail = "admin@example.com"
	config.Twilio.APIBaseURL = "https://api.twilio.com"
	config.Twilio.Timeout = 10 * time.Second
	config.Redis.TTL = 7 * 24 * time.Hour
	config.DefaultTimezone = "UTC"
	return config
}

// ApplyEnv overlays environment variables onto cfg. Unset variables leave
// the current value alone.
func ApplyEnv(cfg *Config) error {
	var errs []error

	setString(&cfg.Server.Host, "SERVER_HOST")
	errs = append(errs, setInt(&cfg.Server.Port, "SERVER_PORT"))
	errs = append(errs, setBool(&cfg.Server.ForceHTTPS, "FORCE_HTTPS"))
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Path, "LOG_PATH")
	errs = append(errs, setBool(&cfg.Logging.Console, "LOG_CONSOLE"))
	setString(&cfg.Security.TOTPEncryptionKey, "TOTP_ENCRYPTION_KEY")

	errs = append(errs, setBool(&cfg.Seed.Enable, "SEED_ADMIN"))
	setString(&cfg.Seed.AdminUsername, "SEED_ADMIN_USERNAME")
	setString(&cfg.Seed.AdminEmail, "SEED_ADMIN_EMAIL")
	setString(&cfg.Seed.AdminPassword, "SEED_ADMIN_PASSWORD")

	setString(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Twilio.FromNumber, "TWILIO_FROM_NUMBER")
	setString(&cfg.Twilio.MessagingServiceSID, "TWILIO_MESSAGING_SERVICE_SID")
	setString(&cfg.Twilio.StatusCallbackURL, "TWILIO_STATUS_CALLBACK_URL")
	setString(&cfg.Twilio.APIBaseURL, "TWILIO_API_BASE_URL")
	errs = append(errs, setBool(&cfg.Twilio.ValidateSignatures, "TWILIO_VALIDATE_SIGNATURES"))

	setString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.Twilio.StatusCallbackURL == "" && cfg.PublicBaseURL != "" {
		cfg.Twilio.StatusCallbackURL = cfg.PublicBaseURL + StatusWebhookPath
	}

	setString(&cfg.Redis.Address, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	errs = append(errs, setInt(&cfg.Redis.DB, "REDIS_DB"))
	if v := os.Getenv("REDIS_TTL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid int for env REDIS_TTL_SECONDS: %s", v))
		} else {
			cfg.Redis.TTL = time.Duration(secs) * time.Second
		}
	}

	setString(&cfg.DefaultTimezone, "DEFAULT_TIMEZONE")

	return errors.Join(errs...)
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database DSN is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required")
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid default timezone %q: %w", c.DefaultTimezone, err)
	}
	if k := c.Security.TOTPEncryptionKey; k != "" && len(k) != 32 {
		return errors.New("TOTP encryption key must be 32 bytes")
	}
	if c.Twilio.ValidateSignatures && c.Twilio.AuthToken == "" {
		return errors.New("twilio auth token is required to validate webhook signatures")
	}
	if c.Seed.Enable && len(c.Seed.AdminPassword) < 8 {
		return errors.New("seed admin password must be at least 8 characters")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	*dst = i
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	*dst = b
	return nil
}

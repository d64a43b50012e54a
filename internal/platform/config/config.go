// Package config loads server configuration from an optional TOML file
// overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigPathEnv names the TOML file read before the environment.
const ConfigPathEnv = "COMPLIANCE_CONFIG"

// Server captures process level configuration.
type Server struct {
	Addr          string        `toml:"addr"`
	PublicBaseURL string        `toml:"public_base_url"`
	Environment   string        `toml:"environment"`
	LogLevel      string        `toml:"log_level"`
	LogFormat     string        `toml:"log_format"`
	ReadTimeout   time.Duration `toml:"read_timeout"`
	WriteTimeout  time.Duration `toml:"write_timeout"`

	Database     DatabaseConfig     `toml:"database"`
	Redis        RedisConfig        `toml:"redis"`
	S3           S3Config           `toml:"s3"`
	Email        EmailConfig        `toml:"email"`
	Kafka        KafkaConfig        `toml:"kafka"`
	Security     SecurityConfig     `toml:"security"`
	Verification VerificationConfig `toml:"verification"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MigrateOnStart  bool          `toml:"migrate_on_start"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `toml:"url"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	LockTTL      time.Duration `toml:"lock_ttl"`
}

type S3Config struct {
	Bucket        string `toml:"bucket"`
	Region        string `toml:"region"`
	Endpoint      string `toml:"endpoint"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	PublicBaseURL string `toml:"public_base_url"`
	UsePathStyle  bool   `toml:"use_path_style"`
}

type EmailConfig struct {
	APIURL        string `toml:"api_url"`
	APIKey        string `toml:"api_key"`
	From          string `toml:"from"`
	WebhookSecret string `toml:"webhook_secret"`
}

type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type SecurityConfig struct {
	// AdminTokenHash is a bcrypt hash of the X-Admin-Token value.
	AdminTokenHash string        `toml:"admin_token_hash"`
	PortalKey      string        `toml:"portal_key"`
	PortalIssuer   string        `toml:"portal_issuer"`
	PortalTTL      time.Duration `toml:"portal_ttl"`
}

type VerificationConfig struct {
	// CodeTTL bounds how old a batch may be when confirmed. Zero disables it.
	CodeTTL     time.Duration `toml:"code_ttl"`
	Concurrency int           `toml:"concurrency"`
}

// Defaults returns a configuration suitable for local development.
func Defaults() Server {
	return Server{
		Addr:          ":8080",
		PublicBaseURL: "http://localhost:8080",
		Environment:   "development",
		LogLevel:      "info",
		LogFormat:     "text",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  30 * time.Second,
		Database: DatabaseConfig{
			MigrateOnStart:  true,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      30 * time.Second,
		},
		S3:    S3Config{Region: "eu-south-1"},
		Email: EmailConfig{From: "Compliance Desk <compliance@localhost>"},
		Kafka: KafkaConfig{Topic: "compliance.audit"},
		Security: SecurityConfig{
			PortalKey:    "dev-portal-key-change-in-production",
			PortalIssuer: "compliancedesk",
			PortalTTL:    14 * 24 * time.Hour,
		},
		Verification: VerificationConfig{Concurrency: 8},
	}
}

// FromEnv loads the file named by COMPLIANCE_CONFIG, if any, then applies
// environment overrides.
func FromEnv() (Server, error) {
	return Load(os.Getenv(ConfigPathEnv))
}

// Load reads path (skipped when empty) over the defaults, then the
// environment, then validates.
func Load(path string) (Server, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Server{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// IsProduction reports whether development shortcuts must be refused.
func (c Server) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations that cannot serve requests safely.
func (c Server) Validate() error {
	var errs []error
	if c.PublicBaseURL == "" {
		errs = append(errs, errors.New("public base url is required"))
	}
	if c.Verification.CodeTTL < 0 {
		errs = append(errs, errors.New("verification code ttl must not be negative"))
	}
	if c.Security.PortalTTL <= 0 {
		errs = append(errs, errors.New("portal ttl must be positive"))
	}
	if c.IsProduction() {
		if c.Security.AdminTokenHash == "" {
			errs = append(errs, errors.New("admin token hash is required in production"))
		}
		if strings.HasPrefix(c.Security.PortalKey, "dev-") || len(c.Security.PortalKey) < 32 {
			errs = append(errs, errors.New("portal key must be at least 32 characters in production"))
		}
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database dsn is required in production"))
		}
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Server, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("COMPLIANCE_ADDR", &cfg.Addr)
	str("PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	str("ENVIRONMENT", &cfg.Environment)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	dur("HTTP_READ_TIMEOUT", &cfg.ReadTimeout)
	dur("HTTP_WRITE_TIMEOUT", &cfg.WriteTimeout)

	str("DATABASE_URL", &cfg.Database.DSN)
	flag("DATABASE_MIGRATE_ON_START", &cfg.Database.MigrateOnStart)
	num("DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	num("DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)

	str("REDIS_URL", &cfg.Redis.URL)
	num("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	dur("REDIS_LOCK_TTL", &cfg.Redis.LockTTL)

	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_PUBLIC_BASE_URL", &cfg.S3.PublicBaseURL)
	flag("S3_USE_PATH_STYLE", &cfg.S3.UsePathStyle)

	str("EMAIL_API_URL", &cfg.Email.APIURL)
	str("EMAIL_API_KEY", &cfg.Email.APIKey)
	str("EMAIL_FROM", &cfg.Email.From)
	str("EMAIL_WEBHOOK_SECRET", &cfg.Email.WebhookSecret)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)

	str("ADMIN_TOKEN_HASH", &cfg.Security.AdminTokenHash)
	str("PORTAL_SIGNING_KEY", &cfg.Security.PortalKey)
	str("PORTAL_ISSUER", &cfg.Security.PortalIssuer)
	dur("PORTAL_LINK_TTL", &cfg.Security.PortalTTL)

	dur("VERIFICATION_CODE_TTL", &cfg.Verification.CodeTTL)
	num("VERIFICATION_CONCURRENCY", &cfg.Verification.Concurrency)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// envConfig lists every environment variable WithEnv understands.
type envConfig struct {
	Port          string            `env:"CMS_PORT" env-description:"HTTP listen port (default 8080)"`
	Environment   string            `env:"CMS_ENVIRONMENT" env-description:"development, production or testing"`
	LogLevel      string            `env:"CMS_LOG_LEVEL" env-description:"debug, info, warn or error"`
	DatabaseURL   string            `env:"CMS_DATABASE_URL" env-description:"memory, postgres://..., postgresql://... or sqlite://path"`
	DBSchema      string            `env:"CMS_DB_SCHEMA" env-description:"Postgres schema holding the content tables"`
	AutoMigrate   string            `env:"CMS_AUTO_MIGRATE" env-description:"apply migrations at startup"`
	MediaURL      string            `env:"CMS_MEDIA_URL" env-description:"memory://, file:///dir or s3://bucket?region=&endpoint=&prefix=&path_style="`
	JWTSecret     string            `env:"CMS_JWT_SECRET" env-description:"HS256 secret; when set, writes require a bearer token"`
	APIKeys       map[string]string `env:"CMS_API_KEYS" env-description:"comma separated name:sha256 pairs; when set, content routes require an API key"`
	MaxSlugTries  int               `env:"CMS_MAX_SLUG_ATTEMPTS" env-description:"slug candidates probed before giving up"`
	CacheMaxAge   string            `env:"CMS_CACHE_MAX_AGE" env-description:"max-age in seconds for content GET responses; 0 sends no-cache"`
	UnknownFields string            `env:"CMS_UNKNOWN_FIELDS" env-description:"reject or ignore payload keys the model does not declare"`
	EventLogging  string            `env:"CMS_EVENT_LOGGING" env-description:"log every engine event"`
	Metrics       string            `env:"CMS_METRICS" env-description:"export Prometheus metrics"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION"`
}

// EnvHelp describes the environment variables read by WithEnv.
func EnvHelp() (string, error) {
	var cfg envConfig
	header := "Environment variables:"
	return cleanenv.GetDescription(&cfg, &header)
}

// WithDotEnv loads .env style files into the process environment before
// WithEnv reads it. Without paths ".env" is tried and may be missing.
func WithDotEnv(paths ...string) Option {
	return func(c *ServerConfig) error {
		if len(paths) == 0 {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			return nil
		}
		if err := godotenv.Load(paths...); err != nil {
			return fmt.Errorf("failed to load env files: %w", err)
		}
		return nil
	}
}

// WithEnv applies environment variable overrides. Unset variables keep the
// values set by defaults and earlier options.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		setString(&c.Port, env.Port)
		setString(&c.Environment, env.Environment)
		setString(&c.LogLevel, env.LogLevel)
		setString(&c.DBSchema, env.DBSchema)
		setString(&c.JWTSecret, env.JWTSecret)
		if len(env.APIKeys) > 0 {
			c.APIKeys = env.APIKeys
		}
		setString(&c.UnknownFields, env.UnknownFields)
		if env.MaxSlugTries != 0 {
			c.MaxSlugAttempts = env.MaxSlugTries
		}
		if env.CacheMaxAge != "" {
			n, err := strconv.Atoi(env.CacheMaxAge)
			if err != nil {
				return fmt.Errorf("invalid integer for CMS_CACHE_MAX_AGE: %w", err)
			}
			c.CacheMaxAge = n
		}

		if err := setBool(&c.AutoMigrate, "CMS_AUTO_MIGRATE", env.AutoMigrate); err != nil {
			return err
		}
		if err := setBool(&c.EnableEventLogging, "CMS_EVENT_LOGGING", env.EventLogging); err != nil {
			return err
		}
		if err := setBool(&c.EnableMetrics, "CMS_METRICS", env.Metrics); err != nil {
			return err
		}

		if err := applyDatabaseURL(c, env.DatabaseURL); err != nil {
			return err
		}
		if err := applyMediaURL(c, env.MediaURL); err != nil {
			return err
		}

		setString(&c.S3.AccessKeyID, env.AWSAccessKeyID)
		setString(&c.S3.SecretAccessKey, env.AWSSecretAccessKey)
		if c.S3.Region == "" {
			setString(&c.S3.Region, env.AWSRegion)
		}
		return nil
	}
}

// applyDatabaseURL detects the database type from the URL scheme.
func applyDatabaseURL(c *ServerConfig, dbURL string) error {
	switch {
	case dbURL == "":
		return nil
	case dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return errors.New("sqlite path cannot be empty in CMS_DATABASE_URL")
		}
		c.DatabaseType = "sqlite"
		c.DatabaseURL = path
	default:
		return fmt.Errorf("unsupported CMS_DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'sqlite://...')", dbURL)
	}
	return nil
}

// applyMediaURL configures the media resolver from a URL.
func applyMediaURL(c *ServerConfig, mediaURL string) error {
	switch {
	case mediaURL == "":
		return nil
	case mediaURL == "none":
		c.MediaBackend = "none"
		return nil
	case mediaURL == "memory" || mediaURL == "memory://":
		c.MediaBackend = "memory"
		return nil
	case strings.HasPrefix(mediaURL, "file://"):
		dir := strings.TrimPrefix(mediaURL, "file://")
		if dir == "" {
			return errors.New("media directory cannot be empty in CMS_MEDIA_URL")
		}
		c.MediaBackend = "fs"
		c.MediaDir = dir
		return nil
	case strings.HasPrefix(mediaURL, "s3://"):
		u, err := url.Parse(mediaURL)
		if err != nil {
			return fmt.Errorf("invalid CMS_MEDIA_URL: %w", err)
		}
		if u.Host == "" {
			return errors.New("S3 bucket name cannot be empty in CMS_MEDIA_URL")
		}
		q := u.Query()
		c.MediaBackend = "s3"
		c.S3.Bucket = u.Host
		setString(&c.S3.Region, q.Get("region"))
		setString(&c.S3.Endpoint, q.Get("endpoint"))
		setString(&c.S3.Prefix, q.Get("prefix"))
		if err := setBool(&c.S3.UsePathStyle, "path_style", q.Get("path_style")); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("unsupported CMS_MEDIA_URL format: %s (use 'memory://', 'file://...' or 's3://...')", mediaURL)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key, raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

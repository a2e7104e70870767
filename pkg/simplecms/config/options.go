package config

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-cms/pkg/simplecms/media"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend. For sqlite the url is a file
// path or ":memory:".
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
		case "postgres", "sqlite":
			if url == "" {
				return fmt.Errorf("database URL is required for %s", dbType)
			}
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate creates or upgrades the tables when the repository is built.
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryMedia checks media keys against an in-process set.
func WithMemoryMedia() Option {
	return func(c *ServerConfig) error {
		c.MediaBackend = "memory"
		return nil
	}
}

// WithFilesystemMedia checks media keys against files below dir.
func WithFilesystemMedia(dir string) Option {
	return func(c *ServerConfig) error {
		if dir == "" {
			return fmt.Errorf("media directory cannot be empty")
		}
		c.MediaBackend = "fs"
		c.MediaDir = dir
		return nil
	}
}

// WithS3Media checks media keys against an S3 bucket.
func WithS3Media(s3 media.S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.MediaBackend = "s3"
		c.S3 = s3
		return nil
	}
}

// WithMetrics toggles the Prometheus event sink. reg may be nil to use the default registry.
func WithMetrics(enabled bool, reg prometheus.Registerer) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		c.registerer = reg
		return nil
	}
}

// WithEventLogging toggles logging of engine events.
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithJWTSecret requires HS256 bearer tokens on write routes.
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithAPIKeys requires one of the given API keys on every content route. Values are
// hex SHA-256 digests of the keys.
func WithAPIKeys(keys map[string]string) Option {
	return func(c *ServerConfig) error {
		for name, hash := range keys {
			if name == "" || hash == "" {
				return fmt.Errorf("api key entries need a name and a hash")
			}
		}
		c.APIKeys = keys
		return nil
	}
}

// WithMaxSlugAttempts caps slug allocation.
func WithMaxSlugAttempts(n int) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max slug attempts must be positive, got: %d", n)
		}
		c.MaxSlugAttempts = n
		return nil
	}
}

// WithCacheMaxAge sets the Cache-Control max-age, in seconds, for content
// GET responses. Zero sends no-cache.
func WithCacheMaxAge(seconds int) Option {
	return func(c *ServerConfig) error {
		if seconds < 0 {
			return fmt.Errorf("cache max age must not be negative, got: %d", seconds)
		}
		c.CacheMaxAge = seconds
		return nil
	}
}

// WithUnknownFields sets the policy for undeclared payload keys ("reject" or "ignore").
func WithUnknownFields(policy string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseUnknownFields(policy); err != nil {
			return err
		}
		c.UnknownFields = policy
		return nil
	}
}

// WithLogLevel sets the minimum level of the default logger.
func WithLogLevel(level string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseLevel(level); err != nil {
			return err
		}
		c.LogLevel = level
		return nil
	}
}

// WithLogger replaces the logger built from Environment and LogLevel.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		c.logger = logger
		return nil
	}
}

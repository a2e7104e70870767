// Package config assembles a ready-to-serve content engine from options and
// environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/media"
	"github.com/tendant/simple-cms/pkg/simplecms/metrics"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
	repopg "github.com/tendant/simple-cms/pkg/simplecms/repo/postgres"
	reposqlite "github.com/tendant/simple-cms/pkg/simplecms/repo/sqlite"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		LogLevel:           "info",
		DatabaseType:       "memory",
		DBSchema:           "cms",
		MediaBackend:       "none",
		EnableEventLogging: true,
		EnableMetrics:      true,
		MaxSlugAttempts:    simplecms.DefaultMaxSlugAttempts,
		UnknownFields:      "reject",
	}
}

// ServerConfig represents server configuration for the content engine
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	LogLevel    string // debug, info, warn, error

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use (default: cms)
	AutoMigrate  bool   // apply migrations or create tables at startup

	// Media configuration
	MediaBackend string // "none", "memory", "fs", "s3"
	MediaDir     string
	S3           media.S3Config

	// Auth
	JWTSecret string
	APIKeys   map[string]string // key name -> hex SHA-256 of the key

	// Engine behavior
	MaxSlugAttempts int
	UnknownFields   string // "reject" or "ignore"

	// Cache-Control max-age for content GET responses, 0 sends no-cache
	CacheMaxAge int

	EnableEventLogging bool
	EnableMetrics      bool

	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	switch c.MediaBackend {
	case "none", "memory":
	case "fs":
		if c.MediaDir == "" {
			return errors.New("media directory is required for the fs media backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required for the s3 media backend")
		}
	default:
		return fmt.Errorf("unsupported media backend: %s", c.MediaBackend)
	}

	if c.MaxSlugAttempts <= 0 {
		return errors.New("max slug attempts must be positive")
	}
	if c.CacheMaxAge < 0 {
		return errors.New("cache max age must not be negative")
	}
	if _, err := parseUnknownFields(c.UnknownFields); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logger returns the configured logger, building one from the environment when none was set.
func (c *ServerConfig) Logger() *slog.Logger {
	if c.logger == nil {
		level, _ := parseLevel(c.LogLevel)
		c.logger = NewLogger(c.Environment, level)
	}
	return c.logger
}

// Components are the pieces built from a ServerConfig.
type Components struct {
	Service    simplecms.Service
	Repository simplecms.Repository
	Metrics    *metrics.EventSink // nil when metrics are disabled
	Logger     *slog.Logger

	closers []func()
}

// Close releases database connections.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build creates the repository, event sinks, media resolver and service.
func (c *ServerConfig) Build(ctx context.Context) (*Components, error) {
	comps := &Components{Logger: c.Logger()}

	repo, err := c.buildRepository(ctx, comps)
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	comps.Repository = repo

	options := []simplecms.Option{
		simplecms.WithRepository(repo),
		simplecms.WithLogger(comps.Logger),
		simplecms.WithMaxSlugAttempts(c.MaxSlugAttempts),
	}

	policy, _ := parseUnknownFields(c.UnknownFields)
	options = append(options, simplecms.WithUnknownFieldPolicy(policy))

	var sinks simplecms.MultiEventSink
	if c.EnableEventLogging {
		sinks = append(sinks, simplecms.NewLoggingEventSink(comps.Logger))
	}
	if c.EnableMetrics {
		reg := c.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		sink, err := metrics.New(reg)
		if err != nil {
			comps.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		comps.Metrics = sink
		sinks = append(sinks, sink)
	}
	if len(sinks) > 0 {
		options = append(options, simplecms.WithEventSink(sinks))
	}

	resolver, err := c.buildMediaResolver(ctx)
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build media resolver: %w", err)
	}
	if resolver != nil {
		options = append(options, simplecms.WithMediaResolver(resolver))
	}

	svc, err := simplecms.New(options...)
	if err != nil {
		comps.Close()
		return nil, err
	}
	comps.Service = svc
	return comps, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, comps *Components) (simplecms.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil

	case "postgres":
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, c.DatabaseURL, c.DBSchema); err != nil {
				return nil, err
			}
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		if schema := c.DBSchema; schema != "" {
			cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
				_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
				return err
			}
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		comps.closers = append(comps.closers, pool.Close)
		return repopg.NewWithPool(pool), nil

	case "sqlite":
		db, err := reposqlite.Open(c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, func() { _ = db.Close() })
		repo := reposqlite.New(db)
		if c.AutoMigrate {
			if err := repo.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildMediaResolver(ctx context.Context) (simplecms.MediaResolver, error) {
	switch c.MediaBackend {
	case "none":
		return nil, nil
	case "memory":
		return media.NewMemory(), nil
	case "fs":
		return media.NewDir(c.MediaDir)
	case "s3":
		return media.NewS3(ctx, c.S3)
	default:
		return nil, fmt.Errorf("unsupported media backend: %s", c.MediaBackend)
	}
}

// Migrate creates or upgrades the content tables of the configured database.
func (c *ServerConfig) Migrate(ctx context.Context) error {
	switch c.DatabaseType {
	case "memory":
		return nil
	case "postgres":
		return repopg.Migrate(ctx, c.DatabaseURL, c.DBSchema)
	case "sqlite":
		db, err := reposqlite.Open(c.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		return reposqlite.New(db).EnsureSchema(ctx)
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func parseUnknownFields(s string) (simplecms.UnknownFieldPolicy, error) {
	switch s {
	case "", "reject":
		return simplecms.RejectUnknownFields, nil
	case "ignore":
		return simplecms.IgnoreUnknownFields, nil
	}
	return 0, fmt.Errorf("unknown fields policy must be 'reject' or 'ignore', got: %s", s)
}

// Package presets builds ready-to-use content services for local
// development and tests.
package presets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/media"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
)

type devConfig struct {
	mediaDir string
	logger   *slog.Logger
}

// DevelopmentOption customizes NewDevelopment.
type DevelopmentOption func(*devConfig)

// WithDevMediaDir sets the directory media references are resolved against.
func WithDevMediaDir(dir string) DevelopmentOption {
	return func(c *devConfig) {
		c.mediaDir = dir
	}
}

// WithDevLogger sets the logger used for lifecycle events.
func WithDevLogger(logger *slog.Logger) DevelopmentOption {
	return func(c *devConfig) {
		c.logger = logger
	}
}

// NewDevelopment creates a service for local development: an in-memory
// repository, media resolved from ./dev-media and every event logged.
//
// The returned cleanup function removes the media directory.
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (simplecms.Service, func(), error) {
	cfg := &devConfig{
		mediaDir: "./dev-media",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(cfg.mediaDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	resolver, err := media.NewDir(cfg.mediaDir)
	if err != nil {
		return nil, nil, err
	}

	svc, err := simplecms.New(
		simplecms.WithRepository(memory.New()),
		simplecms.WithMediaResolver(resolver),
		simplecms.WithEventSink(simplecms.NewLoggingEventSink(cfg.logger)),
		simplecms.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.mediaDir)
	}
	return svc, cleanup, nil
}

type testConfig struct {
	fixtures   bool
	mediaKeys  []string
	serviceOps []simplecms.Option
}

// TestingOption customizes NewTesting.
type TestingOption func(*testConfig)

// WithTestFixtures seeds a "post" model (see PostModel).
func WithTestFixtures() TestingOption {
	return func(c *testConfig) {
		c.fixtures = true
	}
}

// WithTestMedia registers media keys that media fields may reference.
func WithTestMedia(keys ...string) TestingOption {
	return func(c *testConfig) {
		c.mediaKeys = append(c.mediaKeys, keys...)
	}
}

// WithTestServiceOptions passes extra options to simplecms.New.
func WithTestServiceOptions(opts ...simplecms.Option) TestingOption {
	return func(c *testConfig) {
		c.serviceOps = append(c.serviceOps, opts...)
	}
}

// NewTesting creates an isolated service backed by memory for a single test.
// Failures abort the test.
func NewTesting(t testing.TB, opts ...TestingOption) simplecms.Service {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	options := []simplecms.Option{
		simplecms.WithRepository(memory.New()),
		simplecms.WithMediaResolver(media.NewMemory(cfg.mediaKeys...)),
	}
	options = append(options, cfg.serviceOps...)

	svc, err := simplecms.New(options...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	if cfg.fixtures {
		if _, err := svc.CreateModel(context.Background(), PostModel()); err != nil {
			t.Fatalf("failed to seed fixtures: %v", err)
		}
	}
	return svc
}

// PostModel is the fixture model seeded by WithTestFixtures: a required
// title used as slug source, a rich text body and an optional cover image.
func PostModel() simplecms.CreateModelRequest {
	slugField := "title"
	return simplecms.CreateModelRequest{
		Name: "Post",
		Fields: []simplecms.ContentField{
			{Name: "title", Type: simplecms.FieldTypeText, Validation: &simplecms.FieldValidation{Required: true}},
			{Name: "body", Type: simplecms.FieldTypeRichText},
			{Name: "cover", Type: simplecms.FieldTypeMedia},
		},
		Settings: &simplecms.SettingsPatch{SlugField: &slugField},
	}
}

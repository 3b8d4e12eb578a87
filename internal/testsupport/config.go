package testsupport

import (
	"path/filepath"
	"testing"

	"boxd/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Artifact and database paths resolve under the temp data dir. Pipeline
// delays are shortened so retry tests run quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Artifacts.RawFile = filepath.Join(cfgVal.Paths.DataDir, "letterboxd_movie_data.json")
	cfgVal.Artifacts.RecordsFile = filepath.Join(cfgVal.Paths.DataDir, "movies.csv")
	cfgVal.Load.DatabaseFile = filepath.Join(cfgVal.Paths.DataDir, "movies.db")
	cfgVal.Pipeline.RetryDelaySeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithListURL points the scraper at url, typically an httptest server.
func WithListURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scrape.ListURL = url
	}
}

// WithPages overrides the number of list pages fetched.
func WithPages(pages int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scrape.Pages = pages
	}
}

// WithRetries overrides the pipeline retry count.
func WithRetries(retries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Retries = retries
	}
}

// WithTruncate enables truncate_before_load.
func WithTruncate() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Load.TruncateBeforeLoad = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

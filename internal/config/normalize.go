package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScrape()
	if err := c.normalizeArtifacts(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScrape() {
	c.Scrape.ListURL = strings.TrimSpace(c.Scrape.ListURL)
	if value, ok := os.LookupEnv("BOXD_LIST_URL"); ok && strings.TrimSpace(value) != "" {
		c.Scrape.ListURL = strings.TrimSpace(value)
	}
	if c.Scrape.ListURL == "" {
		c.Scrape.ListURL = defaultListURL
	}
	c.Scrape.ItemSelector = strings.TrimSpace(c.Scrape.ItemSelector)
	if c.Scrape.ItemSelector == "" {
		c.Scrape.ItemSelector = defaultItemSelector
	}
	c.Scrape.UserAgent = strings.TrimSpace(c.Scrape.UserAgent)
	if c.Scrape.TimeoutSeconds <= 0 {
		c.Scrape.TimeoutSeconds = defaultScrapeTimeout
	}
}

func (c *Config) normalizeArtifacts() error {
	var err error
	if c.Artifacts.RawFile, err = c.resolveDataFile(c.Artifacts.RawFile, defaultRawFile); err != nil {
		return fmt.Errorf("artifacts.raw_file: %w", err)
	}
	if c.Artifacts.RecordsFile, err = c.resolveDataFile(c.Artifacts.RecordsFile, defaultRecordsFile); err != nil {
		return fmt.Errorf("artifacts.records_file: %w", err)
	}
	if c.Load.DatabaseFile, err = c.resolveDataFile(c.Load.DatabaseFile, defaultDatabaseFile); err != nil {
		return fmt.Errorf("load.database_file: %w", err)
	}
	return nil
}

// resolveDataFile anchors bare file names under the data directory while
// letting absolute or home-relative paths through untouched.
func (c *Config) resolveDataFile(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if strings.HasPrefix(value, "~") || filepath.IsAbs(value) {
		return expandPath(value)
	}
	return expandPath(filepath.Join(c.Paths.DataDir, value))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			key := strings.ToLower(strings.TrimSpace(stage))
			value := strings.ToLower(strings.TrimSpace(level))
			if key == "" || value == "" {
				continue
			}
			overrides[key] = value
		}
		c.Logging.StageOverrides = overrides
	}
}

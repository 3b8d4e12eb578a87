package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"boxd/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Scrape contains configuration for the list scraper.
type Scrape struct {
	ListURL        string `toml:"list_url"`
	Pages          int    `toml:"pages"`
	ItemSelector   string `toml:"item_selector"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryMax       int    `toml:"retry_max"`
	UserAgent      string `toml:"user_agent"`
}

// Artifacts names the intermediate files exchanged between stages. Relative
// names resolve under Paths.DataDir.
type Artifacts struct {
	RawFile     string `toml:"raw_file"`
	RecordsFile string `toml:"records_file"`
}

// Sink contains configuration for the SQLite sink.
type Sink struct {
	DatabaseFile       string `toml:"database_file"`
	TruncateBeforeLoad bool   `toml:"truncate_before_load"`
}

// Pipeline contains retry and scheduling settings for the driver.
type Pipeline struct {
	Retries              int `toml:"retries"`
	RetryDelaySeconds    int `toml:"retry_delay_seconds"`
	SchedulePeriodHours  int `toml:"schedule_period_hours"`
	CheckIntervalSeconds int `toml:"check_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for boxd.
//
// Configuration sections by subsystem:
//   - Paths: data, state, and log directories
//   - Scrape: list location, paging, and HTTP behaviour
//   - Artifacts: raw tooltip JSON and cleaned CSV file names
//   - Load: SQLite database location and load mode
//   - Pipeline: retry policy and schedule period
//   - Logging: log format, level, retention, and per-stage overrides
type Config struct {
	Paths     Paths     `toml:"paths"`
	Scrape    Scrape    `toml:"scrape"`
	Artifacts Artifacts `toml:"artifacts"`
	Load      Sink      `toml:"load"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/boxd/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("boxd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RawPath returns the absolute location of the scraped tooltip artifact.
func (c *Config) RawPath() string {
	return c.Artifacts.RawFile
}

// RecordsPath returns the absolute location of the cleaned CSV artifact.
func (c *Config) RecordsPath() string {
	return c.Artifacts.RecordsFile
}

// DatabasePath returns the absolute location of the SQLite sink.
func (c *Config) DatabasePath() string {
	return c.Load.DatabaseFile
}

// StatePath returns the run history database location.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "state.db")
}

// LockPath returns the file used to serialize pipeline runs across processes.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "boxd.lock")
}

// RetryDelay returns the fixed delay between failed attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Pipeline.RetryDelaySeconds) * time.Second
}

// SchedulePeriod returns the minimum spacing between scheduled runs.
func (c *Config) SchedulePeriod() time.Duration {
	return time.Duration(c.Pipeline.SchedulePeriodHours) * time.Hour
}

// CheckInterval returns how often the daemon evaluates the schedule.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Pipeline.CheckIntervalSeconds) * time.Second
}

// ScrapeTimeout returns the per-request HTTP timeout.
func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSeconds) * time.Second
}

// PageURLs expands the list URL into one URL per configured page. Page one is
// the list URL itself; later pages follow the site's page/N/ convention.
func (c *Config) PageURLs() []string {
	base := strings.TrimRight(strings.TrimSpace(c.Scrape.ListURL), "/") + "/"
	urls := make([]string, 0, c.Scrape.Pages)
	for page := 1; page <= c.Scrape.Pages; page++ {
		if page == 1 {
			urls = append(urls, base)
			continue
		}
		urls = append(urls, fmt.Sprintf("%spage/%d/", base, page))
	}
	return urls
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the commented sample configuration to path, replacing
// any existing file atomically.
func CreateSample(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

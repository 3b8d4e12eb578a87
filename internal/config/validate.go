package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var validStages = map[string]struct{}{
	"scrape": {},
	"clean":  {},
	"load":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScrape(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScrape() error {
	parsed, err := url.Parse(c.Scrape.ListURL)
	if err != nil {
		return fmt.Errorf("scrape.list_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scrape.list_url must be an http(s) URL, got %q", c.Scrape.ListURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("scrape.list_url is missing a host: %q", c.Scrape.ListURL)
	}
	if c.Scrape.Pages <= 0 {
		return errors.New("scrape.pages must be positive")
	}
	if c.Scrape.RetryMax < 0 {
		return errors.New("scrape.retry_max must be >= 0")
	}
	if strings.TrimSpace(c.Scrape.ItemSelector) == "" {
		return errors.New("scrape.item_selector must be set")
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	paths := map[string]string{
		"artifacts.raw_file":     c.Artifacts.RawFile,
		"artifacts.records_file": c.Artifacts.RecordsFile,
		"load.database_file":     c.Load.DatabaseFile,
	}
	seen := make(map[string]string, len(paths))
	for _, key := range []string{"artifacts.raw_file", "artifacts.records_file", "load.database_file"} {
		value := paths[key]
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if other, ok := seen[value]; ok {
			return fmt.Errorf("%s and %s must not point at the same file (%s)", other, key, value)
		}
		seen[value] = key
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Retries < 0 {
		return errors.New("pipeline.retries must be >= 0")
	}
	if c.Pipeline.RetryDelaySeconds < 0 {
		return errors.New("pipeline.retry_delay_seconds must be >= 0")
	}
	if err := ensurePositiveMap(map[string]int{
		"pipeline.schedule_period_hours":  c.Pipeline.SchedulePeriodHours,
		"pipeline.check_interval_seconds": c.Pipeline.CheckIntervalSeconds,
		"scrape.timeout_seconds":          c.Scrape.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	for stage, level := range c.Logging.StageOverrides {
		if _, ok := validStages[stage]; !ok {
			return fmt.Errorf("logging.stage_overrides: unknown stage %q", stage)
		}
		if _, ok := validLogLevels[level]; !ok {
			return fmt.Errorf("logging.stage_overrides.%s: unsupported level %q", stage, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package config

const (
	defaultDataDir              = "~/.local/share/boxd/data"
	defaultStateDir             = "~/.local/share/boxd/state"
	defaultLogDir               = "~/.local/share/boxd/logs"
	defaultListURL              = "https://letterboxd.com/dave/list/official-top-250-narrative-feature-films/"
	defaultPages                = 3
	defaultItemSelector         = "li.posteritem.numbered-list-item a.frame"
	defaultScrapeTimeout        = 20
	defaultScrapeRetryMax       = 2
	defaultRawFile              = "letterboxd_movie_data.json"
	defaultRecordsFile          = "movies.csv"
	defaultDatabaseFile         = "movies.db"
	defaultPipelineRetries      = 2
	defaultRetryDelaySeconds    = 300
	defaultSchedulePeriodHours  = 24
	defaultCheckIntervalSeconds = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Scrape: Scrape{
			ListURL:        defaultListURL,
			Pages:          defaultPages,
			ItemSelector:   defaultItemSelector,
			TimeoutSeconds: defaultScrapeTimeout,
			RetryMax:       defaultScrapeRetryMax,
		},
		Artifacts: Artifacts{
			RawFile:     defaultRawFile,
			RecordsFile: defaultRecordsFile,
		},
		Load: Sink{
			DatabaseFile: defaultDatabaseFile,
		},
		Pipeline: Pipeline{
			Retries:              defaultPipelineRetries,
			RetryDelaySeconds:    defaultRetryDelaySeconds,
			SchedulePeriodHours:  defaultSchedulePeriodHours,
			CheckIntervalSeconds: defaultCheckIntervalSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// Command boxd scrapes a ranked film list, cleans the tooltips into records
// and loads them into SQLite.
//
// `boxd run` performs one full pipeline run with retries, `boxd serve` keeps
// running and triggers a run once per schedule period, and the scrape, clean
// and load subcommands execute a single stage against the configured
// artifacts without touching the run history.
package main

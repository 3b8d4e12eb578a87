// Package pipeline drives one end-to-end ETL run: scrape, clean, load.
//
// The Manager serializes runs with a file lock under the state directory so a
// manual `boxd run` and the scheduler daemon never overlap. Each run is
// identified by a UUID and recorded in the run store as one row per attempt.
// A failed attempt restarts at the scrape stage after the configured retry
// delay until the retry budget is spent, the error is a configuration
// problem, or the context is cancelled.
//
// Stages are plain stage.Handler values registered through ConfigureStages;
// DefaultStages wires the scraper, cleaning and sink packages.
package pipeline

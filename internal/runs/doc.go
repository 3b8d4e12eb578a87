// Package runs persists pipeline run history in SQLite.
//
// Each attempt of a pipeline run is one row. A row moves through
// pending → scraping → scraped → cleaning → cleaned → loading → completed, or
// lands in failed. The daemon uses the most recent start time to decide when
// the next scheduled run is due, and reclaims rows left in a processing status
// by a crashed process.
//
// The schema lives in schema.sql and is versioned; bump schemaVersion when it
// changes.
package runs

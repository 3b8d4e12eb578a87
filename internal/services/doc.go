// Package services defines shared utilities consumed by the pipeline stage
// handlers and their collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, attempt numbers, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (I/O, malformed artifact, external site, configuration) so the driver
//     can decide whether a run is worth retrying.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services

// Package preflight verifies the environment before a pipeline run: the data
// and state directories must exist with read/write access, and the list site
// should answer. Results are plain values so the CLI can render them as a
// table and the pipeline can refuse to start.
package preflight

// Package logs reads the JSON log file written by boxd.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new lines so `boxd logs --follow` polls without holding the file
// open. Lines can be narrowed to one pipeline run by its run ID.
package logs

// Package daemon runs the pipeline on a schedule.
//
// A single daemon per state directory is enforced with a flock. On start it
// fails runs a crashed process left in a processing status, prunes old log
// files, and then evaluates the schedule every check interval: when no run
// has started within the schedule period it triggers one scheduled run.
// Missed periods are not caught up.
package daemon

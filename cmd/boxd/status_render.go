package main

import (
	"fmt"
	"io"
	"strings"
)

type severity int

const (
	sevInfo severity = iota
	sevOK
	sevWarn
	sevError
)

func (s severity) tag() string {
	switch s {
	case sevOK:
		return "ok"
	case sevWarn:
		return "warn"
	case sevError:
		return "fail"
	default:
		return "info"
	}
}

func (s severity) ansi() string {
	switch s {
	case sevOK:
		return "\x1b[32m"
	case sevWarn:
		return "\x1b[33m"
	case sevError:
		return "\x1b[31m"
	default:
		return "\x1b[34m"
	}
}

// statusReport collects the sectioned output of the status command.
type statusReport struct {
	color bool
	lines []string
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	head := "== " + strings.TrimSpace(title) + " =="
	if r.color {
		head = sevInfo.ansi() + head + "\x1b[0m"
	}
	r.lines = append(r.lines, head)
}

func (r *statusReport) add(label string, sev severity, detail string) {
	line := strings.TrimRight(fmt.Sprintf("  %-18s [%-4s] %s", label+":", sev.tag(), detail), " ")
	if r.color {
		line = sev.ansi() + line + "\x1b[0m"
	}
	r.lines = append(r.lines, line)
}

func (r *statusReport) writeTo(w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(r.lines, "\n")+"\n")
	return err
}

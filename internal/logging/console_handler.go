package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one header line per record followed by indented
// key=value lines. Run, attempt, stage and component are lifted into the
// header instead of being listed as fields.
type consoleHandler struct {
	out       *syncWriter
	level     slog.Leveler
	addSource bool
	prefix    string
	fields    []field
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

type field struct {
	key string
	val slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{out: &syncWriter{w: w}, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.fields...)
	record.Attrs(func(a slog.Attr) bool {
		fields = appendField(fields, h.prefix, a)
		return true
	})
	fields = lastValueWins(fields)

	var hdr headerParts
	body := make([]field, 0, len(fields))
	for _, f := range fields {
		if !hdr.take(f) {
			body = append(body, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(ts.Local().Format(timestampLayout))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if hdr.component != "" {
		buf.WriteString(" [" + hdr.component + "]")
	}
	if subject := hdr.subject(); subject != "" {
		buf.WriteString(" " + subject + ":")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(" " + msg)
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" (" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + ")")
		}
	}
	buf.WriteByte('\n')
	for _, f := range body {
		buf.WriteString("    " + f.key + "=" + renderValue(f.val) + "\n")
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := h.out.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = append([]field(nil), h.fields...)
	for _, a := range attrs {
		next.fields = appendField(next.fields, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

type headerParts struct {
	component string
	runID     string
	attempt   string
	stage     string
}

func (p *headerParts) take(f field) bool {
	switch f.key {
	case FieldComponent:
		p.component = f.val.String()
	case FieldRunID:
		p.runID = f.val.String()
	case FieldAttempt:
		p.attempt = f.val.String()
	case FieldStage:
		p.stage = f.val.String()
	default:
		return false
	}
	return true
}

// subject renders "1a2b3c4d/2 scrape" from whichever parts are present.
func (p headerParts) subject() string {
	id := strings.TrimSpace(p.runID)
	if len(id) > 8 {
		id = id[:8]
	}
	if id != "" && p.attempt != "" {
		id += "/" + p.attempt
	}
	return strings.TrimSpace(id + " " + strings.TrimSpace(p.stage))
}

func appendField(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Key == "" && a.Value.Kind() != slog.KindGroup {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := joinKey(prefix, a.Key)
		for _, ga := range a.Value.Group() {
			dst = appendField(dst, inner, ga)
		}
		return dst
	}
	return append(dst, field{key: joinKey(prefix, a.Key), val: a.Value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// lastValueWins collapses repeated keys, keeping the first position and the
// last value.
func lastValueWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].val = f.val
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

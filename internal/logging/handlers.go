package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"boxd/internal/config"
)

// teeHandler hands each record to every member that accepts its level.
type teeHandler []slog.Handler

func newTeeHandler(handlers ...slog.Handler) slog.Handler {
	var live teeHandler
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return slog.DiscardHandler
	case 1:
		return live[0]
	}
	return live
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}

// levelFloor drops records below min. The wrapped handlers run at the most
// verbose level any stage needs, so the floor is what enforces the global
// level.
type levelFloor struct {
	next slog.Handler
	min  slog.Level
}

func (f levelFloor) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.min && f.next.Enabled(ctx, level)
}

func (f levelFloor) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < f.min {
		return nil
	}
	return f.next.Handle(ctx, record)
}

func (f levelFloor) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelFloor{next: f.next.WithAttrs(attrs), min: f.min}
}

func (f levelFloor) WithGroup(name string) slog.Handler {
	return levelFloor{next: f.next.WithGroup(name), min: f.min}
}

// withMinLevel replaces any existing floor on logger instead of stacking a
// second one, so a stage override can lower the global level.
func withMinLevel(logger *slog.Logger, level slog.Level) *slog.Logger {
	h := logger.Handler()
	if floor, ok := h.(levelFloor); ok {
		h = floor.next
	}
	return slog.New(levelFloor{next: h, min: level})
}

// ForStage applies the stage's level override from cfg when one is configured.
func ForStage(logger *slog.Logger, cfg *config.Config, stage string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if cfg == nil {
		return logger
	}
	value := strings.TrimSpace(cfg.Logging.StageOverrides[strings.ToLower(strings.TrimSpace(stage))])
	if value == "" {
		return logger
	}
	return withMinLevel(logger, ParseLevel(value))
}

func newJSONHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   addSource,
		ReplaceAttr: compactJSONAttr,
	})
}

// compactJSONAttr renames the time key to ts, lowercases levels and
// shortens source locations to file:line.
func compactJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
	case slog.LevelKey:
		return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

// Package gblog configures the process-wide slog logger GraphBit and the
// libraries it calls into share: a level-filtering handler that only lets
// third-party log lines through once the level is turned down to debug,
// plus an optional ANSI-colored text format for terminal output (§A ambient
// stack, grounded on the teacher's pkg/logger.Init/GetLogger shape).
package gblog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
)

// modulePrefix marks stack frames belonging to this module, so the filtering
// handler can tell GraphBit's own log lines apart from a dependency's.
const modulePrefix = "github.com/graphbit-dev/graphbit"

// Format selects the text rendering GetLogger/Init produce.
type Format string

const (
	// FormatSimple prints only the level and message (plus attributes).
	FormatSimple Format = "simple"
	// FormatVerbose prints a timestamp ahead of the level and message.
	FormatVerbose Format = "verbose"
)

// ParseLevel converts a config string into an slog.Level, defaulting to
// Warn for anything unrecognized rather than failing config load.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

var (
	mu     sync.Mutex
	active *slog.Logger
)

// Init builds the process-wide logger from level/format/output and installs
// it as slog's default, so every package (including third-party libraries
// that log through the standard slog default logger) is routed through the
// same filtering policy.
func Init(level slog.Level, format Format, output *os.File) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}
	var render slog.Handler
	if isTerminal(output) {
		render = &colorHandler{writer: output, verbose: format == FormatVerbose}
	} else {
		render = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	}
	// filteringHandler sits outermost: it is the one slog.Logger calls
	// Enabled/Handle on, so its module-origin check runs before either
	// renderer ever sees a record.
	handler := &filteringHandler{next: render, minLevel: level}

	l := slog.New(handler)
	mu.Lock()
	active = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// GetLogger returns the process-wide logger, lazily initializing one at
// Warn level / simple format if Init was never called.
func GetLogger() *slog.Logger {
	mu.Lock()
	l := active
	mu.Unlock()
	if l != nil {
		return l
	}
	return Init(slog.LevelWarn, FormatSimple, os.Stderr)
}

// filteringHandler silences third-party log lines below the configured
// level's ceiling unless minLevel has been turned down to debug: GraphBit's
// own noisy debug/trace lines (node dispatch, SSE parse tolerance, tool
// re-registration) are always subject to minLevel, but a dependency
// (otel, koanf, modernc.org/sqlite) only gets to speak once the operator has
// explicitly asked for everything.
type filteringHandler struct {
	next     slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.next.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, rec slog.Record) error {
	if h.minLevel <= slog.LevelDebug || fromThisModule(rec.PC) {
		return h.next.Handle(ctx, rec)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{next: h.next.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{next: h.next.WithGroup(name), minLevel: h.minLevel}
}

func fromThisModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	return strings.Contains(fn.Name(), modulePrefix)
}

// colorHandler renders each record as "LEVEL message key=value ..." (plus a
// leading timestamp in verbose format), colored by level, for terminal
// output. It always sits inside a filteringHandler, which has already made
// the level/module decision by the time Handle is called.
type colorHandler struct {
	verbose bool
	writer  *os.File
}

func (h *colorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func (h *colorHandler) Handle(ctx context.Context, rec slog.Record) error {
	var b strings.Builder
	if h.verbose && !rec.Time.IsZero() {
		b.WriteString(rec.Time.Format("2006-01-02 15:04:05 "))
	}
	b.WriteString(levelColor(rec.Level))
	b.WriteString(strings.ToUpper(rec.Level.String()))
	b.WriteString("\033[0m ")
	b.WriteString(rec.Message)
	rec.Attrs(func(a slog.Attr) bool {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	})
	b.WriteString("\n")
	_, err := h.writer.WriteString(b.String())
	return err
}

// WithAttrs/WithGroup are no-ops: colorHandler formats only the attributes
// carried on the record it's handed (rec.Attrs). Attributes and groups added
// through slog.Logger.With/WithGroup are passed down by filteringHandler but
// discarded here, so they do not appear in colored terminal output.
func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h *colorHandler) WithGroup(name string) slog.Handler { return h }

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string
	Service    string // stamped on every entry when set
}

// Logger is a thin zerolog wrapper. Warn and Error lines are also handed to
// the attached LogCollector, if any.
type Logger struct {
	zl   zerolog.Logger
	slot *collectorSlot
}

// collectorSlot is shared by a logger and every child made with With, so a
// collector attached later reaches all of them.
type collectorSlot struct {
	mu sync.RWMutex
	c  *LogCollector
}

func (s *collectorSlot) get() *LogCollector {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c
}

// Skip emit and the level method so caller points at the call site.
const wrapperFrames = 4

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	zctx := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(wrapperFrames)
	if cfg.Service != "" {
		zctx = zctx.Str("service", cfg.Service)
	}
	return &Logger{zl: zctx.Logger(), slot: &collectorSlot{}}, nil
}

func openOutput(dest string) (io.Writer, error) {
	switch dest {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// NewWithWriter returns a JSON logger writing to w. An unknown level means info.
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger(), slot: &collectorSlot{}}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), slot: &collectorSlot{}}
}

// With returns a child that stamps every entry with fields and shares the
// parent's collector.
func (l *Logger) With(fields ...Field) *Logger {
	zctx := l.zl.With()
	for _, f := range fields {
		zctx = zctx.Interface(f.Key, f.value)
	}
	return &Logger{zl: zctx.Logger(), slot: l.slot}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), "", msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), "", msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), "warn", msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), "error", msg, fields) }

func (l *Logger) emit(ev *zerolog.Event, collectAs, msg string, fields []Field) {
	if ev != nil {
		for _, f := range fields {
			f.apply(ev)
		}
	}
	ev.Msg(msg)
	if collectAs != "" {
		l.collect(collectAs, msg, fields)
	}
}

func (l *Logger) collect(level, msg string, fields []Field) {
	c := l.slot.get()
	if c == nil {
		return
	}
	caller := "unknown"
	// collect <- emit <- Warn/Error <- call site
	if _, file, line, ok := runtime.Caller(3); ok {
		caller = filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)) + ":" + strconv.Itoa(line)
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.value
	}
	c.AddLog(level, msg, m, caller)
}

// AddCollector attaches a new collector, closing any previous one.
func (l *Logger) AddCollector(cfg *CollectionConfig) {
	l.slot.mu.Lock()
	defer l.slot.mu.Unlock()
	if l.slot.c != nil {
		l.slot.c.Close()
	}
	l.slot.c = NewLogCollector(cfg)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	l.slot.mu.Lock()
	defer l.slot.mu.Unlock()
	if l.slot.c != nil {
		l.slot.c.Close()
		l.slot.c = nil
	}
}

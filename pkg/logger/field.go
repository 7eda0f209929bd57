package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// Field is one structured key/value pair. It knows how to write itself to a
// zerolog event and what plain value the collector should keep.
type Field struct {
	Key   string
	value interface{}
	apply func(*zerolog.Event)
}

func (f Field) Value() interface{} { return f.value }

func String(key, v string) Field {
	return Field{Key: key, value: v, apply: func(e *zerolog.Event) { e.Str(key, v) }}
}

func Int(key string, v int) Field {
	return Field{Key: key, value: v, apply: func(e *zerolog.Event) { e.Int(key, v) }}
}

func Int64(key string, v int64) Field {
	return Field{Key: key, value: v, apply: func(e *zerolog.Event) { e.Int64(key, v) }}
}

func Float(key string, v float64) Field {
	return Field{Key: key, value: v, apply: func(e *zerolog.Event) { e.Float64(key, v) }}
}

func Bool(key string, v bool) Field {
	return Field{Key: key, value: v, apply: func(e *zerolog.Event) { e.Bool(key, v) }}
}

// Duration logs whole milliseconds.
func Duration(key string, d time.Duration) Field {
	ms := d.Milliseconds()
	return Field{Key: key, value: ms, apply: func(e *zerolog.Event) { e.Int64(key, ms) }}
}

func Any(key string, v interface{}) Field {
	return Field{Key: key, value: v, apply: func(e *zerolog.Event) { e.Interface(key, v) }}
}

// Error is keyed "error". A nil error logs nothing.
func Error(err error) Field {
	if err == nil {
		return Field{Key: zerolog.ErrorFieldName, value: "", apply: func(*zerolog.Event) {}}
	}
	return Field{Key: zerolog.ErrorFieldName, value: err.Error(), apply: func(e *zerolog.Event) { e.Err(err) }}
}

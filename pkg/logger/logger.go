package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls where and how log lines are written.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or a file path
	TimeFormat string // timestamp layout, RFC3339Nano when empty
}

// Logger is a thin structured-logging front over zerolog. An optional
// ErrorSink receives every warn/error line for aggregation.
type Logger struct {
	zl   zerolog.Logger
	sink *ErrorSink
}

// New builds a Logger from cfg. The level applies to this instance only,
// so test loggers and the app logger can run at different verbosities.
func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	w, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: tf}
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

func openOutput(name string) (io.Writer, error) {
	switch name {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// AttachSink routes warn and error lines into s in addition to the normal
// output. Replaces any previously attached sink.
func (l *Logger) AttachSink(s *ErrorSink) {
	if l.sink != nil {
		l.sink.Close()
	}
	l.sink = s
}

// Close flushes and detaches the sink, if any.
func (l *Logger) Close() {
	if l.sink != nil {
		l.sink.Close()
		l.sink = nil
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
	l.collect("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) emit(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.sink == nil {
		return
	}
	// two frames up: collect -> Warn/Error -> caller
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.LastIndex(file, "/internal/"); i >= 0 {
			file = file[i+1:]
		} else if i := strings.LastIndex(file, "/pkg/"); i >= 0 {
			file = file[i+1:]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	kv := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		kv[f.key] = f.value()
	}
	l.sink.Record(level, msg, caller, kv)
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt64
	kindFloat64
	kindBool
	kindDuration
	kindError
	kindAny
)

// Field is a single structured key/value pair. The tagged layout avoids an
// allocation per field on the hot logging path.
type Field struct {
	key  string
	kind fieldKind
	str  string
	num  int64
	fnum float64
	b    bool
	err  error
	any  interface{}
}

func (f Field) apply(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.str)
	case kindInt64:
		e.Int64(f.key, f.num)
	case kindFloat64:
		e.Float64(f.key, f.fnum)
	case kindBool:
		e.Bool(f.key, f.b)
	case kindDuration:
		e.Dur(f.key, time.Duration(f.num))
	case kindError:
		e.Err(f.err)
	case kindAny:
		e.Interface(f.key, f.any)
	}
}

// value reports the field's payload for sink aggregation.
func (f Field) value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt64:
		return f.num
	case kindFloat64:
		return f.fnum
	case kindBool:
		return f.b
	case kindDuration:
		return time.Duration(f.num).String()
	case kindError:
		if f.err == nil {
			return nil
		}
		return f.err.Error()
	default:
		return f.any
	}
}

func String(key, value string) Field { return Field{key: key, kind: kindString, str: value} }
func Int(key string, value int) Field {
	return Field{key: key, kind: kindInt64, num: int64(value)}
}
func Int64(key string, value int64) Field { return Field{key: key, kind: kindInt64, num: value} }
func Uint64(key string, value uint64) Field {
	return Field{key: key, kind: kindInt64, num: int64(value)}
}
func Float64(key string, value float64) Field {
	return Field{key: key, kind: kindFloat64, fnum: value}
}
func Bool(key string, value bool) Field { return Field{key: key, kind: kindBool, b: value} }
func Duration(key string, value time.Duration) Field {
	return Field{key: key, kind: kindDuration, num: int64(value)}
}
func Error(err error) Field { return Field{key: "error", kind: kindError, err: err} }
func Any(key string, value interface{}) Field {
	return Field{key: key, kind: kindAny, any: value}
}

// Strings joins value into one comma-separated field.
func Strings(key string, value []string) Field {
	return Field{key: key, kind: kindString, str: strings.Join(value, ",")}
}

package jsonlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

type Logger struct {
	base   *log.Logger
	min    Level
	fields map[string]any
	now    func() time.Time
}

func New(w io.Writer) *Logger {
	return &Logger{
		base: log.New(w, "", 0), // no prefix; we emit JSON ourselves
		min:  LevelInfo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return New(io.Discard).WithLevel(LevelError + 1)
}

// WithLevel returns a copy of l that drops entries below min.
func (l *Logger) WithLevel(min Level) *Logger {
	c := l.clone()
	c.min = min
	return c
}

// With returns a copy of l that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	c := l.clone()
	c.fields = make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		c.fields[k] = v
	}
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

func (l *Logger) Enabled(level Level) bool {
	return level >= l.min
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	l.emit(LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit(LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.emit(LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.emit(LevelError, msg, fields)
}

func (l *Logger) clone() *Logger {
	c := *l
	return &c
}

func (l *Logger) emit(level Level, msg string, fields map[string]any) {
	if !l.Enabled(level) {
		return
	}
	m := make(map[string]any, 3+len(l.fields)+len(fields))
	for k, v := range l.fields {
		m[k] = v
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		m[k] = v
	}
	m["ts"] = l.now().Format(time.RFC3339Nano)
	m["level"] = level.String()
	m["msg"] = msg
	b, err := json.Marshal(m)
	if err != nil {
		b, _ = json.Marshal(map[string]any{
			"ts":    m["ts"],
			"level": level.String(),
			"msg":   msg,
			"error": "unencodable fields: " + err.Error(),
		})
	}
	l.base.Print(string(b))
}

type ctxKey struct{}

func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a discarding one.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Discard()
}

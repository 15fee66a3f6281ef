package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the logging contract shared by every package in the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithFields(fields map[string]any) Logger
	WithContext(ctx context.Context) Logger
}

// Format selects the output encoding for New.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New builds a go-logger backed Logger. Text output uses the fmt fallback.
func New(out io.Writer, level, format string) Logger {
	if out == nil {
		out = os.Stdout
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	if strings.EqualFold(format, FormatText) {
		return NewFmt(out, level)
	}
	base := glog.NewLogger(
		glog.WithWriter(out),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
	)
	return &glogLogger{logger: base}
}

type glogLogger struct {
	logger glog.Logger
}

func (l *glogLogger) Debug(msg string, args ...any) { l.logger.Debug(format(msg, args...)) }
func (l *glogLogger) Info(msg string, args ...any)  { l.logger.Info(format(msg, args...)) }
func (l *glogLogger) Warn(msg string, args ...any)  { l.logger.Warn(format(msg, args...)) }
func (l *glogLogger) Error(msg string, args ...any) { l.logger.Error(format(msg, args...)) }

func (l *glogLogger) WithFields(fields map[string]any) Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return &glogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

func (l *glogLogger) WithContext(ctx context.Context) Logger {
	return &glogLogger{logger: l.logger.WithContext(ctx)}
}

// FmtLogger is the fallback logger used when nothing else is configured.
type FmtLogger struct {
	out    io.Writer
	level  int
	ctx    context.Context
	fields map[string]any
}

var levels = map[string]int{"trace": 0, "debug": 1, "info": 2, "warn": 3, "error": 4}

// NewFmt constructs a line logger writing to out, stdout when out is nil.
func NewFmt(out io.Writer, level string) *FmtLogger {
	if out == nil {
		out = os.Stdout
	}
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		lvl = levels["info"]
	}
	return &FmtLogger{out: out, level: lvl, ctx: context.Background()}
}

func (l *FmtLogger) Debug(msg string, args ...any) { l.log(1, "DEBUG", msg, args...) }
func (l *FmtLogger) Info(msg string, args ...any)  { l.log(2, "INFO", msg, args...) }
func (l *FmtLogger) Warn(msg string, args ...any)  { l.log(3, "WARN", msg, args...) }
func (l *FmtLogger) Error(msg string, args ...any) { l.log(4, "ERROR", msg, args...) }

// WithFields adds fields on a shallow-copy logger.
func (l *FmtLogger) WithFields(fields map[string]any) Logger {
	cp := *l
	cp.fields = mergeFields(l.fields, fields)
	return &cp
}

func (l *FmtLogger) WithContext(ctx context.Context) Logger {
	cp := *l
	if ctx == nil {
		ctx = context.Background()
	}
	cp.ctx = ctx
	return &cp
}

func (l *FmtLogger) log(lvl int, name, msg string, args ...any) {
	if lvl < l.level {
		return
	}
	line := fmt.Sprintf("%s %-5s %s", time.Now().UTC().Format(time.RFC3339Nano), name, strings.TrimSpace(format(msg, args...)))
	if fields := formatFields(l.fields); fields != "" {
		line += " " + fields
	}
	fmt.Fprintln(l.out, line)
}

// Normalize returns logger, or a stdout fallback when logger is nil.
func Normalize(logger Logger) Logger {
	if logger == nil {
		return NewFmt(nil, "info")
	}
	return logger
}

// Discard drops everything.
func Discard() Logger {
	return NewFmt(io.Discard, "error")
}

func format(msg string, args ...any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

func mergeFields(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

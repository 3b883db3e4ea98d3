// Package mocks provides shared test doubles for the database packages.
package mocks

import (
	"fmt"
	"sync"
	"time"

	"github.com/gaborage/go-rowkit/logger"
)

// Entry is one message captured by Logger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]any
	Err     error
}

type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// Logger records every emitted message so tests can assert on it.
// The zero value is ready to use.
type Logger struct {
	once   sync.Once
	sink   *sink
	fields map[string]any
}

var _ logger.Logger = (*Logger)(nil)
var _ logger.LogEvent = (*LogEvent)(nil)

func (l *Logger) out() *sink {
	l.once.Do(func() {
		if l.sink == nil {
			l.sink = &sink{}
		}
	})
	return l.sink
}

func (l *Logger) event(level string) logger.LogEvent {
	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &LogEvent{sink: l.out(), level: level, fields: fields}
}

func (l *Logger) Info() logger.LogEvent { return l.event("info") }
func (l *Logger) Error() logger.LogEvent { return l.event("error") }
func (l *Logger) Debug() logger.LogEvent { return l.event("debug") }
func (l *Logger) Warn() logger.LogEvent { return l.event("warn") }
func (l *Logger) Fatal() logger.LogEvent { return l.event("fatal") }

func (l *Logger) WithContext(_ any) logger.Logger { return l }

// WithFields returns a child logger writing to the same sink.
func (l *Logger) WithFields(fields map[string]any) logger.Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	child := &Logger{sink: l.out(), fields: merged}
	child.once.Do(func() {})
	return child
}

// Entries returns a copy of the captured messages.
func (l *Logger) Entries() []Entry {
	s := l.out()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Messages returns the captured messages at level, in order.
func (l *Logger) Messages(level string) []string {
	var msgs []string
	for _, e := range l.Entries() {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// LogEvent accumulates fields until Msg is called.
type LogEvent struct {
	sink   *sink
	level  string
	fields map[string]any
	err    error
}

func (e *LogEvent) with(key string, value any) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *LogEvent) Str(key, value string) logger.LogEvent { return e.with(key, value) }
func (e *LogEvent) Int(key string, value int) logger.LogEvent { return e.with(key, value) }
func (e *LogEvent) Int64(key string, value int64) logger.LogEvent { return e.with(key, value) }
func (e *LogEvent) Uint64(key string, value uint64) logger.LogEvent { return e.with(key, value) }
func (e *LogEvent) Dur(key string, d time.Duration) logger.LogEvent { return e.with(key, d) }
func (e *LogEvent) Interface(key string, value any) logger.LogEvent { return e.with(key, value) }
func (e *LogEvent) Bytes(key string, value []byte) logger.LogEvent { return e.with(key, value) }

func (e *LogEvent) Err(err error) logger.LogEvent {
	e.err = err
	return e
}

func (e *LogEvent) Msg(msg string) {
	e.sink.mu.Lock()
	defer e.sink.mu.Unlock()
	e.sink.entries = append(e.sink.entries, Entry{Level: e.level, Message: msg, Fields: e.fields, Err: e.err})
}

func (e *LogEvent) Msgf(format string, args ...any) {
	e.Msg(fmt.Sprintf(format, args...))
}

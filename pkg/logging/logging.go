// Package logging injects a structured logging sink into the core so that
// production code logs through logrus with the "[!]"/"[X]"/"[?]" prefixes
// the protocol's error-handling design calls for, while tests can swap in
// a recording sink instead of asserting against stderr output.
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Sink is the structured-event interface injected into every role
// orchestrator and into the handshake/go-back-N components.
type Sink interface {
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Prompt(msg string, fields ...any)
}

// logrusSink formats events with the "[!]" (info), "[X]" (error/warn) and
// "[?]" (prompt) prefixes from the error-handling design, then hands them
// to logrus for level-aware dispatch.
type logrusSink struct {
	logger *logrus.Logger
}

// New wraps a *logrus.Logger as a Sink. A nil logger uses logrus.StandardLogger().
func New(logger *logrus.Logger) Sink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &logrusSink{logger: logger}
}

func withFields(entry *logrus.Entry, fields []any) *logrus.Entry {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		entry = entry.WithField(key, fields[i+1])
	}
	return entry
}

func (s *logrusSink) Info(msg string, fields ...any) {
	withFields(s.logger.WithField("tag", "[!]"), fields).Info(msg)
}

func (s *logrusSink) Warn(msg string, fields ...any) {
	withFields(s.logger.WithField("tag", "[X]"), fields).Warn(msg)
}

func (s *logrusSink) Error(msg string, fields ...any) {
	withFields(s.logger.WithField("tag", "[X]"), fields).Error(msg)
}

func (s *logrusSink) Prompt(msg string, fields ...any) {
	withFields(s.logger.WithField("tag", "[?]"), fields).Info(msg)
}

// event is one recorded call, used by the Recorder test sink.
type event struct {
	Level  string
	Msg    string
	Fields []any
}

// Recorder is an in-memory Sink used by tests to assert on emitted events
// without depending on stderr formatting.
type Recorder struct {
	Events []event
}

// NewRecorder returns a Sink that appends every call to Events instead of
// writing anywhere.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Info(msg string, fields ...any)   { r.Events = append(r.Events, event{"info", msg, fields}) }
func (r *Recorder) Warn(msg string, fields ...any)   { r.Events = append(r.Events, event{"warn", msg, fields}) }
func (r *Recorder) Error(msg string, fields ...any)  { r.Events = append(r.Events, event{"error", msg, fields}) }
func (r *Recorder) Prompt(msg string, fields ...any) { r.Events = append(r.Events, event{"prompt", msg, fields}) }

// Count returns how many events of the given level were recorded.
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Events {
		if e.Level == level {
			n++
		}
	}
	return n
}

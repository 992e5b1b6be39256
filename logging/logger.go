package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured log sink the core emits events through. Rendering
// to a file, syslog or any other transport is the rendering layer's concern;
// the core only ever calls Entry.
type Logger interface {
	Entry(lvl Level, message string) *Entry
}

type logger struct {
	log *logrus.Logger
}

// New builds a Logger writing JSON records to w (os.Stdout if w is nil).
func New(w io.Writer, lvl Level) Logger {
	if w == nil {
		w = os.Stdout
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(lvl.logrus())

	return &logger{log: l}
}

func (l *logger) Entry(lvl Level, message string) *Entry {
	return &Entry{
		log:     l.log,
		level:   lvl,
		message: message,
		fields:  logrus.Fields{},
	}
}

// Entry is a single structured log record under construction. Calls chain
// and the record is only emitted on Log.
type Entry struct {
	log     *logrus.Logger
	level   Level
	message string
	fields  logrus.Fields
	err     error
}

// Field attaches a key/value pair to the record.
func (e *Entry) Field(key string, val interface{}) *Entry {
	if e == nil {
		return e
	}
	e.fields[key] = val
	return e
}

// ErrorAdd attaches err to the record if non-nil; onlyIfErr controls whether
// the entry should be dropped silently when err is nil.
func (e *Entry) ErrorAdd(onlyIfErr bool, err error) *Entry {
	if e == nil {
		return e
	}
	if err == nil && onlyIfErr {
		e.level = NilLevel()
	}
	e.err = err
	return e
}

// NilLevel reports a level value Log() never emits, used to suppress a
// conditional record without branching at the call site.
func NilLevel() Level {
	return Level(255)
}

// Log emits the record. A no-op if the entry is nil or was suppressed.
func (e *Entry) Log() {
	if e == nil || e.log == nil {
		return
	}
	if e.level == NilLevel() {
		return
	}

	if e.err != nil {
		e.fields["error"] = e.err.Error()
	}

	e.log.WithFields(e.fields).Log(e.level.logrus(), e.message)
}

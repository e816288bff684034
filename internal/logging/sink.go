package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Sink writes probe diagnostics to a logrus logger. Start and end tags go
// out at debug level, warnings at warn level. It never fails.
type Sink struct {
	log logrus.FieldLogger
}

// NewSink wraps l.
func NewSink(l logrus.FieldLogger) *Sink {
	return &Sink{log: l}
}

func (s *Sink) Start(op string, kv ...any) {
	s.log.WithFields(fields(kv)).WithField("tag", "start").Debug(op)
}

func (s *Sink) End(op string, kv ...any) {
	s.log.WithFields(fields(kv)).WithField("tag", "end").Debug(op)
}

func (s *Sink) Warn(kind, msg string, kv ...any) {
	s.log.WithFields(fields(kv)).WithField("warning", kind).Warn(msg)
}

// fields turns alternating key/value pairs into logrus fields. A dangling
// key is kept with a nil value; non-string keys are formatted.
func fields(kv []any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		if i+1 < len(kv) {
			f[k] = kv[i+1]
		} else {
			f[k] = nil
		}
	}
	return f
}

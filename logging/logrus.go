package logging

import (
	"github.com/sirupsen/logrus"

	"bufftree"
)

// Logrus wraps a logrus.Logger to implement bufftree.Logger.
type Logrus struct {
	logger *logrus.Logger
}

// NewLogrus creates a bufftree.Logger from a logrus.Logger.
func NewLogrus(logger *logrus.Logger) bufftree.Logger {
	return &Logrus{logger: logger}
}

func (l *Logrus) Error(msg string, args ...any) { l.entry(args).Error(msg) }
func (l *Logrus) Warn(msg string, args ...any)  { l.entry(args).Warn(msg) }
func (l *Logrus) Info(msg string, args ...any)  { l.entry(args).Info(msg) }

func (l *Logrus) entry(args []any) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return l.logger.WithFields(fields)
}

package ui

import "github.com/lni/dragonboat/v4/logger"

// Reporter is the sink for messages shown to the user.
// dragonboat's logger.ILogger satisfies it, so does every logger returned by
// CreateLogger.
type Reporter interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NewReporter returns the reporter for the named component
func NewReporter(name string) Reporter {
	return logger.GetLogger(name)
}

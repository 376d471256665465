// Package ui contains everything kvcopy uses to talk to the user: the logger
// factory, the Reporter interface and a periodic progress line.
//
// The loggers implement dragonboat's logger.ILogger and write lines of the form
//
//	2024/01/01 12:00:00 INFO  | runner          | copied 1000 keys
//
// InitLoggers installs the factory with logger.SetLoggerFactory, so every
// package can keep obtaining its logger with logger.GetLogger("<name>"). The
// same loggers serve as strategy.UI (debug traces of the verifier), as
// Reporter and as badger's logger.
package ui

// Copyright (c) 2017-2018 The nox developers

// Package log wires up the process-wide logging backend shared by every
// organizer, pool and facade package. It follows the same split the teacher
// uses: a rotating file sink from jrick/logrotate plus a colorized terminal
// sink from mattn/go-colorable feeding a single btclog.Backend, and each
// consuming package owning its own `var log btclog.Logger` set through a
// package-local UseLogger, the idiom in
// _examples/Qitmeer-qitmeer/services/blkmgr/log.go.
package log

import (
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/mattn/go-colorable"
)

// writer fans logging output out to stderr (optionally colorized) and, once
// InitLogRotator has been called, to a rotating log file.
type writer struct {
	rotator   *rotator.Rotator
	colorable io.Writer
}

func (w *writer) Write(p []byte) (int, error) {
	if w.rotator != nil {
		w.rotator.Write(p)
	}
	return w.colorable.Write(p)
}

var globalWriter = &writer{colorable: colorable.NewColorableStderr()}

var (
	backendLog = btclog.NewBackend(globalWriter)

	// Disabled is the initial value of every package's logger variable;
	// each package's init() replaces it with a NewSubsystem logger, so
	// output is enabled (at Info level) by default.
	Disabled = btclog.Disabled
)

// InitLogRotator initializes the rotating file sink. It must be called
// before any subsystem logger is created if file logging is desired.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return err
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return err
	}
	globalWriter.rotator = r
	return nil
}

// NewSubsystem returns a logger for the named subsystem (e.g. "headerpool",
// "chain", "txorganize"), defaulting to Info level the way the teacher's
// UseLogger(l.New(l.Ctx{"module": ...})) call sites default their packages.
func NewSubsystem(name string) btclog.Logger {
	logger := backendLog.Logger(name)
	logger.SetLevel(btclog.LevelInfo)
	return logger
}

// SetLevel adjusts the level of a previously created subsystem logger.
func SetLevel(logger btclog.Logger, level btclog.Level) {
	logger.SetLevel(level)
}

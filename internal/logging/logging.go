// Package logging provides the process-wide zap logger.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu         sync.RWMutex
	sugar      *zap.SugaredLogger
	baseLogger *zap.Logger
)

// Init initializes the package-level logger
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	mu.Lock()
	baseLogger = zapLogger
	sugar = zapLogger.Sugar()
	mu.Unlock()
	return nil
}

// Logger returns the base zap logger
func Logger() *zap.Logger {
	mu.RLock()
	l := baseLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if baseLogger == nil {
		// not initialised, e.g. in tests or library use
		baseLogger = zap.NewNop()
		sugar = baseLogger.Sugar()
	}
	return baseLogger
}

// S returns the sugared logger
func S() *zap.SugaredLogger {
	Logger()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Named returns a sugared logger scoped to a component
func Named(component string) *zap.SugaredLogger {
	return S().Named(component)
}

// Sync flushes any buffered log entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}

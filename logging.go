package flowz

import (
	"os"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var logger = atomic.NewPointer(NewLogger())

// NewLogger returns the default flowz logger. Setting FLOWZ_DEBUG=true
// switches to the development configuration.
func NewLogger() *zap.SugaredLogger {
	var config zap.Config
	if debugMode, ok := os.LookupEnv("FLOWZ_DEBUG"); ok && debugMode == "true" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stdout"}
	l, err := config.Build()
	if err != nil {
		panic(err)
	}
	return l.Named("flowz").Sugar()
}

// Logger returns the logger used by every operator.
func Logger() *zap.SugaredLogger {
	return logger.Load()
}

// SetLogger replaces the package logger and returns a function restoring the
// previous one. A nil logger installs a no-op logger.
func SetLogger(l *zap.SugaredLogger) (restore func()) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	prev := logger.Swap(l)
	return func() { logger.Store(prev) }
}

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Multi returns a logger that writes every entry to all given loggers. Used
// by serve to log to the console and a JSON file at once.
func Multi(loggers ...*zap.Logger) *zap.Logger {
	cores := make([]zapcore.Core, len(loggers))
	for i, l := range loggers {
		cores[i] = l.Core()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

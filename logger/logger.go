// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package logger provides helper functions to configure and use a global logger
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vabaly/phala-blockchain/config"
)

// init sets up reasonable logging defaults for tests / non-main
func init() {
	if err := Init(config.Default()); err != nil {
		panic(err)
	}
}

// Init replaces the global logger with one built from cfg.Log. The level
// stays bound to cfg.Log.Level, so changing it later takes effect
// immediately.
func Init(cfg *config.Config) error {
	z, err := cfg.Log.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	zap.ReplaceGlobals(z)
	return nil
}

// WithGlobal binds fields to the global logger, ex the worker origin
func WithGlobal(fields ...zapcore.Field) {
	zap.ReplaceGlobals(zap.L().With(fields...))
}

// Named returns a logger for one component, ex "chain" or "devchain". It
// carries the fields bound to the global logger at the time of the call.
func Named(component string) *Logger {
	return &Logger{zap.L().WithOptions(zap.AddCallerSkip(-1)).Named(component).Sugar()}
}

// Sync flushes any buffered logs. Applications should call Sync before program exit.
func Sync() {
	zap.L().Sync()
}

type Logger struct {
	*zap.SugaredLogger
}

// wrappers around sugared zap logging methods that use the zap global logger

func Infow(msg string, keysAndValues ...interface{})  { zap.S().Infow(msg, keysAndValues...) }
func Infof(template string, args ...interface{})      { zap.S().Infof(template, args...) }
func Debugw(msg string, keysAndValues ...interface{}) { zap.S().Debugw(msg, keysAndValues...) }
func Debugf(template string, args ...interface{})     { zap.S().Debugf(template, args...) }
func Warnw(msg string, keysAndValues ...interface{})  { zap.S().Warnw(msg, keysAndValues...) }
func Warnf(template string, args ...interface{})      { zap.S().Warnf(template, args...) }
func Errorw(msg string, keysAndValues ...interface{}) { zap.S().Errorw(msg, keysAndValues...) }
func Errorf(template string, args ...interface{})     { zap.S().Errorf(template, args...) }
func Fatalw(msg string, keysAndValues ...interface{}) { zap.S().Fatalw(msg, keysAndValues...) }
func Fatalf(template string, args ...interface{})     { zap.S().Fatalf(template, args...) }

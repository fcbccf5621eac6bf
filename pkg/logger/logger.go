package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry written by an initialised logger
const ServiceName = "tunedetect"

// Logger is a no-op until Init is called, so packages can log from tests.
var Logger = zap.NewNop()

// Init replaces the global logger. Debug mode uses the console encoder at
// debug level; otherwise entries are JSON at info level.
func Init(debug bool) error {
	logger, err := newConfig(debug).Build()
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

func newConfig(debug bool) zap.Config {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.DisableStacktrace = true
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.InitialFields = map[string]interface{}{"service": ServiceName}
	return config
}

// Replace swaps the global logger and returns a func restoring the previous one
func Replace(l *zap.Logger) func() {
	prev := Logger
	Logger = l
	return func() { Logger = prev }
}

// With returns a child logger carrying the given fields
func With(fields ...zap.Field) *zap.Logger {
	return Logger.With(fields...)
}

// ForRequest returns a child logger tagged with the request and requester
func ForRequest(requestID string, userID int64, fields ...zap.Field) *zap.Logger {
	return Logger.With(append([]zap.Field{
		zap.String("request_id", requestID),
		zap.Int64("user_id", userID),
	}, fields...)...)
}

func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
}

// Fatal logs and exits the process
func Fatal(msg string, fields ...zap.Field) {
	Logger.Fatal(msg, fields...)
}

// Sync flushes buffered entries
func Sync() error {
	return Logger.Sync()
}

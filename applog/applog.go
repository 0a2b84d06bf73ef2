package applog

import (
	"fmt"
	"lobby-autohost/build"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger = zap.Logger

const (
	asyncSinkBufferSize = 4096
	shutdownTimeout     = 2 * time.Second
)

var (
	globalLogger  = zap.NewNop()
	asyncSinks    []*asyncSink
	logFile       *os.File
	acceptingLogs int32 = 1
)

func Info(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Debug(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Error(msg string, fields ...zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func Fatal(msg string, fields ...zapcore.Field) {
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

// LogStartupInfo writes build information together with the (already redacted) launch arguments.
func LogStartupInfo(launchArgs interface{}) {
	buildInfo := build.GetBuildInfo()
	buildCommit := "unknown"
	if buildInfo.CommitHash != "" {
		buildCommit = buildInfo.CommitHash
	}

	Info("Application started",
		zap.String("buildCommit", buildCommit),
		zap.String("buildVersion", buildInfo.Version),
		zap.Any("launchArgs", launchArgs),
	)
}

func GetLogger() *Logger {
	return globalLogger
}

// Initialize creates the log file for the given host instance and replaces the global logger
// with one writing JSON to both stdout and that file.
func Initialize(instanceName string, rawLogLevel int, logPath string) error {
	if logPath == "" {
		workdir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current working directory: %w", err)
		}
		logPath = filepath.Join(workdir, "logs")
	}

	if instanceName == "" {
		instanceName = "default"
	}

	logFilename := filepath.Join(logPath, fmt.Sprintf("autohost_%s.log", instanceName))

	if err := os.MkdirAll(filepath.Dir(logFilename), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFilename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", logFilename, err)
	}
	logFile = file

	level := safeGetLogLevelOrDefault(rawLogLevel)
	encoder := zapcore.NewJSONEncoder(getEncoderConfig())

	consoleSink := newAsyncSink(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level), asyncSinkBufferSize)
	fileSink := newAsyncSink(zapcore.NewCore(encoder.Clone(), zapcore.AddSync(logFile), level), asyncSinkBufferSize)
	asyncSinks = []*asyncSink{consoleSink, fileSink}

	logger := zap.New(zapcore.NewTee(consoleSink, fileSink), zap.AddCaller()).
		With(zap.String("instance", instanceName))

	atomic.StoreInt32(&acceptingLogs, 1)
	setLogger(logger)
	return nil
}

// Shutdown stops accepting new entries, drains the async sinks and closes the log file.
func Shutdown() {
	atomic.StoreInt32(&acceptingLogs, 0)

	for _, sink := range asyncSinks {
		sink.Shutdown(shutdownTimeout)
		_ = sink.Sync()
	}
	asyncSinks = nil

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func safeGetLogLevelOrDefault(raw int) zapcore.Level {
	level := zapcore.Level(raw)
	if level < zapcore.DebugLevel || level > zapcore.FatalLevel {
		return zapcore.InfoLevel
	}
	return level
}

func getEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	return encoderConfig
}

func setLogger(l *Logger) {
	globalLogger = l
	zap.ReplaceGlobals(globalLogger)
}

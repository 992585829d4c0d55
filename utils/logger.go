package utils

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	isVerbose atomic.Bool
	level     = zap.NewAtomicLevelAt(zap.InfoLevel)
	logger    atomic.Pointer[zap.Logger]
	initOnce  sync.Once
)

// LogOptions controls where logs go besides the console.
type LogOptions struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// InitLogger builds the process logger. Console output goes to console
// (stderr when nil); when opts.File is set, JSON logs are also written to a
// rotated file. Only the first call has an effect.
func InitLogger(opts LogOptions, console zapcore.WriteSyncer) {
	initOnce.Do(func() {
		if console == nil {
			console = zapcore.Lock(os.Stderr)
		}
		if opts.Level != "" && !isVerbose.Load() {
			_ = level.UnmarshalText([]byte(opts.Level))
		}

		cores := []zapcore.Core{zapcore.NewCore(newEncoder(opts.Format), console, level)}
		if opts.File != "" {
			fileWriter := zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSize,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAge,
				Compress:   opts.Compress,
			})
			cores = append(cores, zapcore.NewCore(newEncoder("json"), fileWriter, level))
		}

		l := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("handsfree")
		logger.Store(l)
		zap.ReplaceGlobals(l)
	})
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	if format == "json" {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// Logger returns the process logger, initializing a console logger on first use.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	InitLogger(LogOptions{}, nil)
	return logger.Load()
}

// ResetLoggerForTest discards the process logger so the next call rebuilds it.
func ResetLoggerForTest() {
	logger.Store(nil)
	initOnce = sync.Once{}
}

func SetVerbose(verbose bool) {
	isVerbose.Store(verbose)
	if verbose {
		level.SetLevel(zap.DebugLevel)
	} else {
		level.SetLevel(zap.InfoLevel)
	}
}

func IsVerbose() bool {
	return isVerbose.Load()
}

func Verbose(format string, args ...interface{}) {
	if isVerbose.Load() {
		Logger().Sugar().Debugf(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	Logger().Sugar().Infof(format, args...)
}

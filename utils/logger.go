package utils

import (
	"io"
	"os"
	"time"

	"github.com/amirphl/lead-exchange/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger from the logging section
func NewLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(cfg.EnableCaller)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	logger.SetOutput(LogWriter(cfg))
	return logger
}

// LogWriter returns the sink selected by cfg.Output. File output rotates with lumberjack.
func LogWriter(cfg config.LoggingConfig) io.Writer {
	switch cfg.Output {
	case "file":
		return rotatingFile(cfg)
	case "both":
		return io.MultiWriter(os.Stdout, rotatingFile(cfg))
	default:
		return os.Stdout
	}
}

func rotatingFile(cfg config.LoggingConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// NewDiscardLogger returns a logger that drops everything
func NewDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/graphbio/genograph/internal/config"
)

// setupLogger builds the timestamping log function the managers share. With
// a configured log file the output rotates via lumberjack; otherwise it goes
// to stderr. The returned closer is a no-op for stderr.
func setupLogger(cfg config.LogConfig) (func(string, ...interface{}), io.Closer) {
	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)

	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = rotating
		closer = rotating
	}

	logf := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		_, _ = fmt.Fprintf(out, "[%s] %s\n", timestamp, msg)
	}
	return logf, closer
}

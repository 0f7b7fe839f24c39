package godex

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogHandler returns a JSON slog handler writing to w and, when
// cfg.LogFile is set, to a size-rotated file as well.
func NewLogHandler(cfg Config, w io.Writer, level slog.Level) slog.Handler {
	if cfg.LogFile != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

package vault

import (
	"io"
	"log/slog"

	"github.com/natefinch/lumberjack"
)

// NewFileLogger returns a structured logger that writes to path,
// rotating it once it grows past maxSizeMB (lumberjack handles rotation
// and retention). Vault operations use this to record the
// corrupt-chunk and skipped-entry warnings required by spec §7 without
// interrupting the caller.
func NewFileLogger(path string, maxSizeMB int) (*slog.Logger, io.Closer, error) {
	rotator := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxSizeMB,
		MaxAge:   28,
		Compress: true,
	}
	return slog.New(slog.NewJSONHandler(rotator, nil)), rotator, nil
}

// discardLogger is used when a caller does not configure a log
// destination; vault operations must still be able to log without a
// nil check at every call site.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

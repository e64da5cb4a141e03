package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/nguyengg/uzip/util"
)

// Prefix creates a consistent prefix for all archive-based logs.
//
// i and n are the zero-based ordinal and expected count. Long archive names are truncated.
func Prefix(i, n int, name string) string {
	return fmt.Sprintf(`[%d/%d] "%s" - `, i+1, n, util.TruncateRightWithSuffix(filepath.Base(name), 30, "..."))
}

// NewLogger creates a new logger writing to w using Prefix.
func NewLogger(w io.Writer, i, n int, name string) *log.Logger {
	return log.New(w, Prefix(i, n, name), 0)
}

type loggerKey struct{}

// WithLogger attaches the logger to context.
func WithLogger(ctx context.Context, logger *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// MustLogger returns the logger attached to the given context.
//
// If none was attached, the standard logger is returned.
func MustLogger(ctx context.Context) *log.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return logger
	}

	return log.Default()
}

// Package logging provides the context-bound zerolog setup shared by the
// connection drivers and middleware.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the base logger. Output defaults to os.Stderr with zerolog's
// native JSON encoder when w is nil; pass a zerolog.ConsoleWriter for
// human-readable output instead.
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// WithConn returns a logger carrying connID and remoteAddr fields, and a
// context with that logger bound via zerolog.Ctx.
func WithConn(ctx context.Context, base zerolog.Logger, connID, remoteAddr string) (context.Context, zerolog.Logger) {
	logger := base.With().Str("conn_id", connID).Str("remote_addr", remoteAddr).Logger()
	return logger.WithContext(ctx), logger
}

// WithRoute returns a logger carrying an additional route field.
func WithRoute(logger zerolog.Logger, route string) zerolog.Logger {
	return logger.With().Str("route", route).Logger()
}

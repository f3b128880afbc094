// Command exampleserver runs a demo streamware server exposing a greeter
// controller (scalar request/reply) and an infinite-ticker controller
// (unbounded outbound sequence).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	streamware "github.com/nggorpc/streamware"
	"github.com/nggorpc/streamware/internal/logging"
	"github.com/nggorpc/streamware/registry"
)

func main() {
	cmd := &cli.Command{
		Name:   "exampleserver",
		Usage:  "Run the streamware demo server",
		Flags:  flags(),
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "exampleserver: %v\n", err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "listen address"},
		&cli.BoolFlag{Name: "insecure-skip-verify", Usage: "allow WebSocket connections from any origin (development only)"},
		&cli.BoolFlag{Name: "dev", Usage: "console-formatted logging instead of JSON"},
		&cli.DurationFlag{Name: "idle-timeout", Value: 5 * time.Minute, Usage: "close WebSocket connections idle longer than this"},
		&cli.DurationFlag{Name: "idle-check-interval", Value: time.Minute, Usage: "how often to scan for idle connections"},
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("dev"))

	builder := registry.NewBuilder("")
	if err := builder.Register(func() any { return greeterController{} }); err != nil {
		return fmt.Errorf("register greeter controller: %w", err)
	}
	if err := builder.Register(func() any { return tickerController{} }); err != nil {
		return fmt.Errorf("register ticker controller: %w", err)
	}
	reg := builder.Build()

	srv := streamware.NewServer(reg, logger,
		streamware.WithInsecureSkipVerify(cmd.Bool("insecure-skip-verify")),
		streamware.WithIdleTimeout(cmd.Duration("idle-timeout")),
		streamware.WithIdleCheckInterval(cmd.Duration("idle-check-interval")),
	)

	mux := http.NewServeMux()
	httpServer := &http.Server{
		Addr:    cmd.String("addr"),
		Handler: srv.Middleware(mux),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("exampleserver listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("streamware server shutdown error")
	}
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return logging.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"})
	}
	return logging.New(nil)
}

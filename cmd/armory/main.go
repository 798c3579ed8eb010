package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"armory/internal/config"
	"armory/internal/console"
	"armory/internal/httpserver"
)

const shutdownTimeout = 5 * time.Second

// env holds the process streams so run can be driven from tests.
type env struct {
	stdin       io.Reader
	interactive bool
	stdout      io.Writer
	stderr      io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], env{
		stdin:       os.Stdin,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, e env) int {
	cfg, err := config.FromArgs(args)
	if err != nil {
		fmt.Fprintf(e.stdout, "Invalid port number. Please specify a number between %d and %d.\n", config.MinPort, config.MaxPort)
		return 1
	}

	logger := newLogger(e.stdout)
	srv := httpserver.New(httpserver.Options{
		Config:   cfg,
		Logger:   logger,
		Progress: e.stderr,
	})
	ln, err := srv.Listen()
	if err != nil {
		if httpserver.IsAddrInUse(err) {
			fmt.Fprintf(e.stdout, "Error: Port %d is already in use. Please try a different port.\n", cfg.Port)
		} else {
			fmt.Fprintf(e.stdout, "Error: %v\n", err)
		}
		return 1
	}
	logger.Info().Str("uploads", cfg.UploadDir).Msgf("Serving on port %d", cfg.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down the server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if e.interactive {
		fmt.Fprintln(e.stdout, console.Hint)
		lister := &console.Lister{In: e.stdin, Out: e.stdout, Dir: cfg.Root}
		g.Go(func() error {
			// A dead terminal must not stop the server.
			if err := lister.Run(gctx); err != nil {
				logger.Warn().Err(err).Msg("Keypress listener stopped")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped")
		return 1
	}
	return 0
}

func newLogger(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(out).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

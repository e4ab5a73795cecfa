package bridge

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/glyphs-mcp/bridge/internal/logger"
	"github.com/jessevdk/go-flags"
)

// Run parses args, starts the bridge and serves stdio until the local client
// disconnects or SIGINT/SIGTERM arrives. Diagnostics, including the error
// that stopped the bridge, go to stderr.
func Run(args []string) error {
	return run(args, os.Stderr)
}

func run(args []string, stderr io.Writer) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}
	log, err := logger.NewWithWriter("mcpb", "info", stderr)
	if err != nil {
		return err
	}
	defer log.Flush()
	if err = log.SetLevel(options.LogLevel); err != nil {
		log.Error(err, "invalid options")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err = serve(ctx, options, log); err != nil {
		log.Error(err, "bridge stopped")
		return err
	}
	return nil
}

func serve(ctx context.Context, options *Options, log *logger.Logger) error {
	service, err := New(ctx, options, log.Logger)
	if err != nil {
		return err
	}
	log.Info("connecting", "url", options.URL)
	if err = service.Start(ctx); err != nil {
		_ = service.Close()
		if ctx.Err() != nil {
			log.Info("interrupted during startup")
			return nil
		}
		return err
	}
	srv, err := service.Stdio(ctx, os.Stdin, os.Stdout)
	if err != nil {
		_ = service.Close()
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return service.Close()
	case err = <-done:
		_ = service.Close()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "local transport failed")
		}
		log.Info("local client disconnected")
		return nil
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/config"
	"github.com/goliatone/go-formsync/pkg/store/remote"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

var errServeRemote = errors.New("serve needs a local store driver, not remote")

func serveCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Expose the configured store over HTTP and websockets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides server.addr",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if rt.cfg.Store.Driver == config.DriverRemote {
				return errServeRemote
			}
			addr := rt.cfg.Server.Addr
			if v := cmd.String("addr"); v != "" {
				addr = v
			}

			docs, blobs, closeStore, err := openStore(ctx, rt.cfg.Store, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					rt.logger.Warn("closing store", zap.Error(err))
				}
			}()

			handler := remote.NewServer(docs, blobs,
				remote.WithServerLogger(rt.logger),
				remote.WithMaxBody(rt.cfg.Server.MaxBody),
				remote.WithOriginPatterns(rt.cfg.Server.OriginPatterns...),
			)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr, handler, rt.logger)
		},
	}
}

// serve runs the server until ctx is cancelled, then drains connections.
func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("store server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down store server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

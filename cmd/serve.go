package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/company-explorer/explorer/pkg/api"
	"github.com/company-explorer/explorer/pkg/log"
	"github.com/company-explorer/explorer/pkg/ratelimit"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.addr)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("addr"))
		},
	}
}

// serve runs the HTTP API until SIGINT or SIGTERM. SIGHUP reloads the index.
func serve(ctx context.Context, configPath, addr string) error {
	logger := log.ForService("serve")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	b := openBackends(cfg)
	defer b.Close()

	svc, gate := b.service(cfg)
	auth := api.NewSessionAuth(cfg.Auth.SessionCookie, cfg.Auth.SessionTokens)
	server := api.NewServer(svc, auth)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.WatchIndex {
		go func() {
			if err := b.engine.Watch(runCtx); err != nil {
				logger.Warnf("index watch stopped: %v", err)
			}
		}()
	}
	go pruneLoop(runCtx, gate, pruneInterval)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	logger.Infof("listening on %s (backends: %v, rate limit %d per %s)",
		addr, svc.Backends(), gate.Limit(), gate.Window())

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serving http: %w", err)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Infof("received SIGHUP, reloading index")
				if err := b.engine.Reload(); err != nil {
					logger.Warnf("reloading index: %v", err)
				}
				continue
			}
			return shutdown(httpServer, cancel)
		case <-ctx.Done():
			return shutdown(httpServer, cancel)
		}
	}
}

func shutdown(srv *http.Server, cancel context.CancelFunc) error {
	fmt.Println("\nShutting down...")
	cancel()

	ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// pruneLoop drops expired rate-limit counters every interval.
func pruneLoop(ctx context.Context, gate *ratelimit.Gate, interval time.Duration) {
	logger := log.ForService("serve")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := gate.Prune(); n > 0 {
				logger.Debugf("pruned %d rate limit records, %d tracked", n, gate.Tracked())
			}
		}
	}
}

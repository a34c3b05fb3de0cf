package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"dropinbox/internal/api"
	"dropinbox/internal/config"
	"dropinbox/internal/logging"
	"dropinbox/internal/provider/dropmail"
	"dropinbox/internal/redisstore"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stderr))
}

// run executes the command line and returns the process exit code. Errors
// that escape serve, including flag parse errors, are printed to stderr.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := &cli.Command{
		Name:      "dropinbox-api",
		ErrWriter: stderr,
		Usage:     "forwarding endpoints for the disposable mailbox provider",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML configuration file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
		},
		Action: serve,
	}

	if err := cmd.Run(ctx, args); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadPath(cmd.String("config"))
	if err != nil {
		logging.New("info", "text").WithError(err).Error("failed to load configuration")
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	prov := dropmail.New(dropmail.Config{
		Endpoint: cfg.ProviderURL,
		Timeout:  cfg.ProviderTimeout(),
	}, log)

	var limiter api.RateLimiter
	if cfg.RedisURL != "" {
		store, err := redisstore.New(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			log.WithError(err).Error("failed to connect to Redis")
			return err
		}
		defer store.Close()
		limiter = store
	} else {
		log.Info("REDIS_URL not set, rate limiting disabled")
	}

	handler := api.New(cfg, prov, limiter, log)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("ListenAndServe failed")
			return err
		}
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return err
	}
	log.Info("server exiting")
	return nil
}

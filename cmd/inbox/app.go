package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"dropinbox/internal/config"
	"dropinbox/internal/domain"
	"dropinbox/internal/lifecycle"
	"dropinbox/internal/logging"
	"dropinbox/internal/notify"
	"dropinbox/internal/provider/forward"
	"dropinbox/internal/redisstore"
	"dropinbox/internal/sessionstore"
)

// app holds what every command needs: configuration, logger, session store
// and the provider client.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	store  sessionstore.Store
	out    io.Writer
	in     *bufio.Reader
	closer func() error
}

func newApp(cmd *cli.Command) (*app, error) {
	cfg, err := config.LoadPath(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	} else if os.Getenv("LOG_LEVEL") == "" && cmd.String("config") == "" {
		// Warnings only by default so logs do not interleave with the inbox.
		cfg.LogLevel = "warn"
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	a := &app{
		cfg:    cfg,
		log:    log,
		out:    os.Stdout,
		in:     bufio.NewReader(os.Stdin),
		closer: func() error { return nil },
	}

	switch cfg.SessionBackend {
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("SESSION_BACKEND=redis requires REDIS_URL")
		}
		rs, err := redisstore.New(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.store = rs
		a.closer = rs.Close
	case "memory":
		a.store = sessionstore.NewMemoryStore()
	case "file", "":
		dir, err := cfg.SessionDir()
		if err != nil {
			return nil, err
		}
		fs, err := sessionstore.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		a.store = fs
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	return a, nil
}

func (a *app) Close() {
	if err := a.closer(); err != nil {
		a.log.WithError(err).Warn("failed to close session store")
	}
}

// controller builds a lifecycle controller talking to the forwarding API.
// manual disables background polling for one-shot commands.
func (a *app) controller(manual bool, onMessages func([]domain.Message)) *lifecycle.Controller {
	return lifecycle.New(lifecycle.Options{
		Store:        a.store,
		Provider:     forward.New(a.cfg.APIURL, a.cfg.ProviderTimeout()),
		PollInterval: a.cfg.PollInterval(),
		Manual:       manual,
		OnMessages:   onMessages,
		Logger:       a.log,
	})
}

// permission combines the configured state with an interactive prompt when
// stdin is a terminal.
func (a *app) permission() notify.Permission {
	var ask notify.AskFunc
	if term.IsTerminal(int(os.Stdin.Fd())) {
		ask = a.confirm
	}
	return notify.NewPromptPermission(notify.ParsePermission(a.cfg.Notifications), ask)
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}

// confirm asks a yes/no question on the terminal. Anything but y/yes is no.
func (a *app) confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(a.out, "%s [y/N] ", question)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil && r.err != io.EOF {
			return false, r.err
		}
		answer := strings.ToLower(strings.TrimSpace(r.line))
		return answer == "y" || answer == "yes", nil
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"dropinbox/internal/domain"
	"dropinbox/internal/lifecycle"
	"dropinbox/internal/notify"
	"dropinbox/internal/view"
)

var errNoSession = errors.New("no active session; run `inbox generate` first")

var generateCommand = &cli.Command{
	Name:  "generate",
	Usage: "create a new temporary mailbox",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl := a.controller(true, nil)
		defer ctrl.Close()

		if ctrl.Resume(ctx) == lifecycle.Active {
			a.println(view.Muted("A session is already active. Run `inbox end` to start over."))
			a.println(view.Header(*ctrl.Session(), time.Now()))
			return nil
		}

		sess, err := ctrl.Generate(ctx)
		if err != nil {
			a.println(view.Error("Could not create a mailbox. Try again in a moment."))
			return err
		}
		a.println(view.Header(*sess, time.Now()))
		return nil
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "show the active mailbox",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl := a.controller(true, nil)
		defer ctrl.Close()

		if ctrl.Resume(ctx) != lifecycle.Active {
			a.println(view.Muted("No active session."))
			return nil
		}
		a.println(view.Header(*ctrl.Session(), time.Now()))
		return nil
	},
}

var watchCommand = &cli.Command{
	Name:  "watch",
	Usage: "poll the inbox and print it whenever it changes; new e-mail rings the bell",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "generate",
			Usage: "create a mailbox when none is active",
		},
		&cli.BoolFlag{
			Name:  "quiet-on-tty",
			Usage: "do not notify while stdout is an interactive terminal (its window may be in the background)",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		perm := a.permission()
		if perm.State() == notify.Default {
			if _, err := perm.Request(ctx); err != nil {
				a.log.WithError(err).Warn("notification permission request failed")
			}
		}

		focus := watchFocus(cmd.Bool("quiet-on-tty"), int(os.Stdout.Fd()))
		newMail := notify.NewSignal(perm, focus, notify.NewTerminalNotifier(os.Stderr), a.log)

		onMessages := func(msgs []domain.Message) {
			newMail.Observe(len(msgs))
			a.println("")
			a.println(view.Inbox(msgs))
		}

		ctrl := a.controller(false, onMessages)
		defer ctrl.Close()

		if ctrl.Resume(ctx) != lifecycle.Active {
			if !cmd.Bool("generate") {
				return errNoSession
			}
			if _, err := ctrl.Generate(ctx); err != nil {
				a.println(view.Error("Could not create a mailbox. Try again in a moment."))
				return err
			}
		}

		a.println(view.Header(*ctrl.Session(), time.Now()))
		a.println(view.Muted(fmt.Sprintf("Checking every %s. Press Ctrl+C to stop.", a.cfg.PollInterval())))

		<-ctx.Done()
		return nil
	},
}

// watchFocus picks how watch decides that the inbox is being looked at.
func watchFocus(quietOnTTY bool, stdoutFd int) notify.Focus {
	if quietOnTTY {
		return notify.NewTerminalFocus(stdoutFd)
	}
	return notify.Unfocused{}
}

var readCommand = &cli.Command{
	Name:      "read",
	Usage:     "fetch the inbox once and show message N",
	ArgsUsage: "N",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n := 0
		if arg := cmd.Args().First(); arg != "" {
			n, err = strconv.Atoi(arg)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid message number %q", arg)
			}
		}

		ctrl := a.controller(true, nil)
		defer ctrl.Close()

		if ctrl.Resume(ctx) != lifecycle.Active {
			return errNoSession
		}
		if err := ctrl.Refresh(ctx); err != nil {
			a.println(view.Error("Could not fetch the inbox. Try again in a moment."))
			return err
		}

		if n == 0 {
			a.println(view.Inbox(ctrl.Messages()))
			return nil
		}

		if err := ctrl.Select(n - 1); err != nil {
			return err
		}
		if msg, ok := ctrl.Selected(); ok {
			a.println(view.Message(msg))
		}
		return nil
	},
}

var endCommand = &cli.Command{
	Name:  "end",
	Usage: "end the session; all e-mails are lost",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl := a.controller(true, nil)
		defer ctrl.Close()

		if ctrl.Resume(ctx) != lifecycle.Active {
			a.println(view.Muted("No active session."))
			return nil
		}

		if !cmd.Bool("yes") {
			ok, err := a.confirm(ctx, "End the session? All e-mails will be lost.")
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		if err := ctrl.End(ctx); err != nil {
			return err
		}
		a.println(view.Muted("Session ended."))
		return nil
	},
}

var notificationsCommand = &cli.Command{
	Name:  "notifications",
	Usage: "show or request permission for new-mail notifications",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "request",
			Usage: "ask for permission when it has not been decided",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		perm := a.permission()
		if cmd.Bool("request") {
			if _, err := perm.Request(ctx); err != nil {
				a.println(view.Error(err.Error()))
				return nil
			}
		}
		a.println("notifications: " + string(perm.State()))
		return nil
	},
}

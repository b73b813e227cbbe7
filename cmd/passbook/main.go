package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"passbook/internal/api"
	"passbook/internal/app"
	"passbook/internal/auth"
	"passbook/internal/backend"
	"passbook/internal/cli"
	"passbook/internal/config"
	"passbook/internal/log"
	"passbook/internal/render"
)

type command struct {
	summary string
	// amqp commands may publish outbox notifications.
	amqp bool
	run  func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"status":       {summary: "show the current screen and latest month", run: runStatus},
	"setup":        {summary: "create the PIN", run: runSetup},
	"login":        {summary: "log in with the PIN [-auto]", run: runLogin},
	"logout":       {summary: "end the session", run: runLogout},
	"change-pin":   {summary: "change the PIN", run: runChangePIN},
	"balance":      {summary: "show the overall balance", run: runBalance},
	"months":       {summary: "list months [-all] [-pages N]", run: runMonths},
	"month":        {summary: "show a month [YYYY-MM] [-all] [-pages N]", run: runMonth},
	"month-create": {summary: "create a month: month-create YYYY-MM", run: runMonthCreate},
	"expense":      {summary: "add, edit or delete an expense", amqp: true, run: runExpense},
	"funds":        {summary: "add funds to a month [-month] -amount [-queue]", amqp: true, run: runFunds},
	"export":       {summary: "export all months to Google Sheets [-dry-run]", run: runExport},
	"family":       {summary: "family allowance commands", run: runFamily},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: passbook <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-13s %s\n", name, commands[name].summary)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "passbook: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(stderr, "passbook: %v\n", err)
		return 1
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEnv(ctx, cfg, logger, cmd.amqp, stdin, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "passbook: %v\n", err)
		return 1
	}
	defer func() {
		if err := e.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	if err := cmd.run(ctx, e, args[1:]); err != nil {
		// The expiry listener has already told the user.
		if !errors.Is(err, api.ErrSessionExpired) {
			fmt.Fprintf(stderr, "passbook: %v\n", err)
		}
		return 1
	}
	return 0
}

// env is what every command gets: the opened backend, the terminal and the
// PIN app controller.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.Backend
	term    *render.Terminal
	app     *app.App
	in      *bufio.Reader
	out     io.Writer
}

func newEnv(ctx context.Context, cfg *config.Config, logger *log.Logger, withAMQP bool, stdin io.Reader, stdout io.Writer) (*env, error) {
	b, err := backend.Open(ctx, cfg, logger.Logger, backend.Options{AMQP: withAMQP})
	if err != nil {
		return nil, err
	}

	term := render.NewTerminal(stdout)
	application := app.New(b.API, term, logger.With(log.FieldComponent, log.ComponentApp).Slog())
	b.API.OnSessionExpired(application.HandleSessionExpired)

	return &env{
		cfg:     cfg,
		logger:  logger,
		backend: b,
		term:    term,
		app:     application,
		in:      bufio.NewReader(stdin),
		out:     stdout,
	}, nil
}

// newAuth builds the PIN controller; a successful login loads the latest month.
func (e *env) newAuth(opts ...auth.Option) *auth.Controller {
	opts = append(opts, auth.WithLogger(e.logger.With(log.FieldComponent, log.ComponentAuth).Slog()))
	ctl := auth.New(e.backend.API, e.term, opts...)
	ctl.OnAuthSuccess(e.app.OnAuthSuccess)
	return ctl
}

func (e *env) Close() error {
	return e.backend.Close()
}

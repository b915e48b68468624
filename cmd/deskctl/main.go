// deskctl is the operator console for the service desk. It runs the ticket
// and maintenance workflows against a remote API.
//
//	deskctl [global flags] <command> [command flags] [args]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/client"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/desk"
	"github.com/spec-kit/servicedesk/internal/observability"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", apperrors.UserMessage(err))
		os.Exit(1)
	}
}

type session struct {
	client    *client.Client
	tickets   *desk.TicketDesk
	contracts *desk.ContractDesk
	logger    *zap.Logger
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		baseURL  string
		token    string
		userID   string
		timeout  int
		logLevel string
	)
	global := pflag.NewFlagSet("deskctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.StringVar(&baseURL, "url", cfg.Backend.BaseURL, "API base URL")
	global.StringVar(&token, "token", cfg.Backend.Token, "bearer token (or DESK_TOKEN)")
	global.StringVar(&userID, "user", os.Getenv("DESK_USER_ID"), "signed-in user id, checked before technician actions")
	global.IntVar(&timeout, "timeout", cfg.Backend.TimeoutSeconds, "request timeout in seconds")
	global.StringVar(&logLevel, "log-level", "warn", "log level")
	global.Usage = func() { printUsage(global) }
	if err := global.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(global)
		return nil
	}

	logger, err := observability.NewLogger(config.LoggerConfig{Level: logLevel})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	api := client.New(config.BackendConfig{BaseURL: baseURL, Token: token, TimeoutSeconds: timeout}, logger)
	tracker := desk.NewRequestTracker()
	directory := desk.NewTechnicianDirectory(api, logger)
	s := &session{
		client: api,
		tickets: desk.NewTicketDesk(desk.TicketDeskConfig{
			Backend:   api,
			UserID:    userID,
			Logger:    logger,
			Tracker:   tracker,
			Directory: directory,
		}),
		contracts: desk.NewContractDesk(desk.ContractDeskConfig{
			Backend:   api,
			Logger:    logger,
			Tracker:   tracker,
			Directory: directory,
		}),
		logger: logger,
	}
	defer s.tickets.Close()
	defer s.contracts.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, found := commands[rest[0]]
	if !found {
		printUsage(global)
		return fmt.Errorf("unknown command %q", rest[0])
	}
	flags := pflag.NewFlagSet(rest[0], pflag.ContinueOnError)
	exec := cmd.setup(flags)
	if err := flags.Parse(rest[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flags.NArg() < cmd.args {
		return apperrors.NewValidationError(fmt.Sprintf("usage: deskctl %s %s", rest[0], cmd.usage), nil)
	}
	return exec(ctx, s, flags.Args())
}

func printUsage(global *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: deskctl [global flags] <command> [flags] [args]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(os.Stderr, "\nglobal flags:")
	global.PrintDefaults()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

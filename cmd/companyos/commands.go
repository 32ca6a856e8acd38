package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/startupsquad-prog/company-os-sub003/cmd/companyos/cli"
	"github.com/startupsquad-prog/company-os-sub003/internal/app"
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/cache"
	"github.com/startupsquad-prog/company-os-sub003/jobs"
)

const usage = `usage: companyos [command]

commands:
  serve                               run the HTTP API (default)
  session issue --profile ID [--json] issue a bearer session
  session revoke --token TOKEN        revoke a bearer session
  permissions invalidate --role ROLE  drop cached permissions for a role
  jobs stats                          show notification queue state
  jobs redeliver --id OUTBOX_ID       queue delivery of one outbox message
  jobs sweep [--age 120] [--limit 100] queue an outbox sweep
`

func runCommand(args []string) int {
	if len(args) < 2 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	switch args[0] {
	case "session", "permissions":
		return runAuthCommand(ctx, cfg, args)
	case "jobs":
		return runJobsCommand(ctx, cfg, args[1], args[2:])
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

func runAuthCommand(ctx context.Context, cfg *app.Config, args []string) int {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer redisClient.Close()

	fs := flag.NewFlagSet(args[0]+" "+args[1], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	profile := fs.String("profile", "", "profile id")
	jsonOut := fs.Bool("json", false, "print json")
	token := fs.String("token", "", "session token")
	role := fs.String("role", "", "role name")
	if err := fs.Parse(args[2:]); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", fs.Name(), err)
		return 2
	}

	switch args[0] + " " + args[1] {
	case "session issue":
		sessions := cli.NewSessionCLI(authz.NewSessionStore(redisClient, cfg.SessionTTL))
		return sessions.IssueCommand(ctx, cli.IssueOptions{ProfileID: *profile, JSONOutput: *jsonOut})
	case "session revoke":
		sessions := cli.NewSessionCLI(authz.NewSessionStore(redisClient, cfg.SessionTTL))
		return sessions.RevokeCommand(ctx, *token, os.Stderr)
	case "permissions invalidate":
		store, closeStore, err := app.OpenStore(ctx, cfg)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer closeStore()
		perms := authz.NewPermissionStore(store, redisClient, cfg.PermissionCacheTTL, app.NewLogger(cfg))
		return cli.NewPermissionsCLI(perms).InvalidateCommand(ctx, *role, os.Stdout, os.Stderr)
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, sub string, args []string) int {
	fs := flag.NewFlagSet("jobs "+sub, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.String("id", "", "outbox message id")
	age := fs.Int("age", int(cfg.NotifySweepAge.Seconds()), "minimum message age in seconds")
	limit := fs.Int("limit", 100, "maximum messages per sweep")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", fs.Name(), err)
		return 2
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()
	jobsCLI := cli.NewJobsCLI(client, inspector)

	switch sub {
	case "stats":
		return jobsCLI.StatsCommand(os.Stdout, os.Stderr)
	case "redeliver":
		return jobsCLI.RedeliverCommand(ctx, *id, os.Stderr)
	case "sweep":
		return jobsCLI.SweepCommand(ctx, *age, *limit, os.Stderr)
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

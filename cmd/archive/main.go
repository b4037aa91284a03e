// archive runs one archive pass and exits. Without --user every target user
// is archived; with --user only that user. Dates default to today in the
// archive time zone.
//
// It can also mint admin bearer tokens for the HTTP trigger endpoints:
//
//	archive --issue-admin-token --subject ops --ttl 24h
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"zoomarchive/internal/app"
	"zoomarchive/internal/auth"
	"zoomarchive/internal/config"
	"zoomarchive/internal/logger"
	"zoomarchive/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	from       string
	to         string
	user       string
	issueToken bool
	subject    string
	ttl        time.Duration
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("archive", pflag.ContinueOnError)
	flagSet.StringVar(&opts.from, "from", "", "first day to archive, YYYY-MM-DD (default: today)")
	flagSet.StringVar(&opts.to, "to", "", "last day to archive, YYYY-MM-DD (default: today)")
	flagSet.StringVarP(&opts.user, "user", "u", "", "archive only this user id or email")
	flagSet.BoolVar(&opts.issueToken, "issue-admin-token", false, "print a signed admin bearer token and exit")
	flagSet.StringVar(&opts.subject, "subject", "operator", "subject of the issued admin token")
	flagSet.DurationVar(&opts.ttl, "ttl", 24*time.Hour, "lifetime of the issued admin token")
	flagSet.SetOutput(stdout)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if opts.issueToken {
		return issueToken(cfg, opts, stdout)
	}

	loc, err := cfg.ArchiveLocation()
	if err != nil {
		return fmt.Errorf("archive time zone %q: %w", cfg.ArchiveTimeZone, err)
	}
	r, err := pipeline.ParseRange(opts.from, opts.to, time.Now(), loc)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: logger.ParseLevel(cfg.LogLevel), Output: os.Stderr})
	a, err := app.Build(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var sum pipeline.Summary
	if opts.user != "" {
		sum, err = a.Pipeline.RunUser(ctx, opts.user, r)
	} else {
		sum, err = a.Pipeline.RunRange(ctx, r)
	}
	if encErr := writeJSON(stdout, sum); encErr != nil {
		log.Error("write summary", slog.String("error", encErr.Error()))
	}
	return err
}

func issueToken(cfg *config.App, opts options, stdout io.Writer) error {
	if cfg.AdminJWTKey == "" {
		return errors.New("ADMIN_JWT_KEY is not set")
	}
	token, exp, err := auth.IssueAdmin(opts.subject, cfg.AdminJWTIssuer, cfg.AdminJWTKey, opts.ttl)
	if err != nil {
		return err
	}
	return writeJSON(stdout, map[string]any{
		"access_token": token,
		"expires_at":   exp.UTC().Format(time.RFC3339),
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

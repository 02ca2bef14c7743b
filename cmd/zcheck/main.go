// Command zcheck verifies a running z-score service against the percentile
// columns of LMS reference tables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/okian/zcalc/internal/domain/model"
	"github.com/okian/zcalc/internal/zcheck"
	"github.com/okian/zcalc/pkg/logger"
)

var (
	name    = "zcheck"
	version = "v0.0.1-default"
)

const (
	flagURL       = "url"
	flagAttribute = "attribute"
	flagWorkers   = "workers"
	flagTimeout   = "timeout"
	flagTolerance = "tolerance"
	flagVerbose   = "verbose"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      name,
		Version:   version,
		Usage:     "Checks that tabulated percentiles score as the matching normal quantiles",
		ArgsUsage: "<csv>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagURL,
				Usage:   "Base URL of the z-score service",
				Value:   zcheck.DefaultBaseURL,
				Sources: cli.EnvVars("ZCHECK_URL"),
			},
			&cli.StringFlag{
				Name:  flagAttribute,
				Usage: "Attribute the tables describe",
				Value: string(model.HeadCircumference),
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "Concurrent requests",
				Value: int64(runtime.NumCPU()),
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Usage: "Per-request timeout",
				Value: zcheck.DefaultTimeout,
			},
			&cli.FloatFlag{
				Name:  flagTolerance,
				Usage: "Allowed difference between expected and returned Z",
				Value: zcheck.DefaultTolerance,
			},
			&cli.BoolFlag{
				Name:    flagVerbose,
				Aliases: []string{"v"},
				Usage:   "Logs every case",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, logger.Init(logger.WithWriter(cmd.Root().ErrWriter), logger.WithoutSource())
		},
		Action: check,
	}
}

func check(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("%w: pass at least one CSV file", zcheck.ErrNoCases)
	}
	attribute, err := model.ParseAttribute(cmd.String(flagAttribute))
	if err != nil {
		return err
	}

	cfg := &zcheck.Config{
		BaseURL:   cmd.String(flagURL),
		Attribute: attribute,
		Tables:    cmd.Args().Slice(),
		Workers:   int(cmd.Int(flagWorkers)),
		Timeout:   cmd.Duration(flagTimeout),
		Tolerance: cmd.Float(flagTolerance),
		Verbose:   cmd.Bool(flagVerbose),
	}

	stats, err := zcheck.Run(ctx, cfg, logger.Named("zcheck"))
	if stats != nil && stats.Cases > 0 {
		fmt.Fprintf(cmd.Root().Writer, "%d/%d passed, max |dz| %.2e in %s\n",
			stats.Passed, stats.Cases, stats.MaxDelta, stats.Duration)
	}
	return err
}

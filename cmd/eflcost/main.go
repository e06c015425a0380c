// eflcost CLI - reconcile electricity plan rate models against disclosed anchors
//
// Usage:
//
//	eflcost evaluate --draft draft.json --text efl.txt --anchor-500 14.2 --anchor-1000 13.1 --anchor-2000 12.8
//	eflcost evaluate --batch plans.json --store sqlite
//	eflcost validate --draft draft.json
//	eflcost project --draft draft.json
//	eflcost price --draft draft.json --at 2025-01-06T14:00:00 --import-kwh 1.5
//	eflcost computability --draft draft.json --anchor-1000 13.1
//	eflcost queue list --store clickhouse
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"efl-cost/db/clickhouse"
	"efl-cost/db/sqlite"
	"efl-cost/decision/evaluation"
	"efl-cost/decision/reconcile"
	"efl-cost/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "eflcost",
		Usage:   "Electricity plan rate-model reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"EFLCOST_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "log-console",
				Value: platform.GetEnvBool("EFLCOST_LOG_CONSOLE", true),
				Usage: "Human-readable logs instead of JSON lines",
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   "none",
				Usage:   "Review-queue store (none, sqlite, clickhouse)",
				EnvVars: []string{"EFLCOST_STORE"},
			},
			&cli.StringFlag{
				Name:  "sqlite-path",
				Value: platform.GetEnv("EFLCOST_SQLITE_PATH", "eflcost.db"),
				Usage: "SQLite database file",
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "eflcost",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
		},

		Before: func(c *cli.Context) error {
			platform.InitLogger(c.String("log-level"), c.Bool("log-console"))
			return nil
		},

		Commands: []*cli.Command{
			evaluateCommand(),
			validateCommand(),
			projectCommand(),
			priceCommand(),
			computabilityCommand(),
			queueCommand(),
		},
	}
}

// reviewStore is an evaluation.Store that owns a connection.
type reviewStore interface {
	evaluation.Store
	io.Closer
}

// openStore returns nil when --store is none.
func openStore(c *cli.Context) (reviewStore, error) {
	switch c.String("store") {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err := sqlite.NewStore(c.String("sqlite-path"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	case "clickhouse":
		s, err := clickhouse.NewStore(&clickhouse.Config{
			Host:     c.String("clickhouse-host"),
			Port:     c.Int("clickhouse-port"),
			Database: c.String("clickhouse-database"),
			Username: c.String("clickhouse-user"),
			Password: c.String("clickhouse-password"),
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want none, sqlite or clickhouse)", c.String("store"))
	}
}

func engineConfig(c *cli.Context) (evaluation.Config, error) {
	cfg := evaluation.DefaultConfig()
	tol, err := parseDecimal(c.String("tolerance"))
	if err != nil {
		return cfg, fmt.Errorf("invalid --tolerance: %w", err)
	}
	if tol.IsPositive() {
		cfg.Tolerance = tol
	} else {
		cfg.Tolerance = reconcile.DefaultTolerance
	}
	cfg.Workers = c.Int("workers")
	cfg.Wire.MinuteResolution = c.Bool("minute-resolution")
	return cfg, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"efl-cost/decision/billing"
	"efl-cost/decision/computability"
	"efl-cost/decision/estimation"
	"efl-cost/decision/evaluation"
	"efl-cost/decision/policy"
	"efl-cost/decision/pricer"
	"efl-cost/decision/ratemodel"
	"efl-cost/decision/reconcile"
	"efl-cost/decision/validation"
	"efl-cost/decision/wire"
	"efl-cost/pkg/platform"
)

// Exit code for a plan the serve gate denied.
const exitDenied = 2

func draftFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "draft",
		Aliases:  []string{"d"},
		Usage:    "Path to the draft rate model JSON",
		Required: true,
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "table",
		Usage:   "Output format (table, json, markdown)",
	}
}

func anchorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: "anchor-500", Usage: "Disclosed average price at 500 kWh (cents/kWh)"},
		&cli.Float64Flag{Name: "anchor-1000", Usage: "Disclosed average price at 1000 kWh (cents/kWh)"},
		&cli.Float64Flag{Name: "anchor-2000", Usage: "Disclosed average price at 2000 kWh (cents/kWh)"},
	}
}

func anchorsFrom(c *cli.Context) ratemodel.Anchors {
	get := func(name string) *float64 {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Float64(name)
		return &v
	}
	return ratemodel.NewAnchors(get("anchor-500"), get("anchor-1000"), get("anchor-2000"))
}

func readDraft(path string) (*ratemodel.RateModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft: %w", err)
	}
	defer f.Close()
	return ratemodel.ReadDraft(f)
}

// =============================================================================
// EVALUATE COMMAND
// =============================================================================

func evaluateCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "draft",
			Aliases: []string{"d"},
			Usage:   "Path to the draft rate model JSON",
		},
		&cli.StringFlag{
			Name:  "text",
			Usage: "Path to the disclosure raw text",
		},
		&cli.StringFlag{
			Name:  "plan-id",
			Usage: "Plan identifier (defaults to the draft file name)",
		},
		&cli.StringFlag{
			Name:  "batch",
			Usage: "Path to a JSON array of evaluation requests",
		},
		&cli.StringFlag{
			Name:  "tolerance",
			Value: platform.GetEnvDecimal("EFLCOST_TOLERANCE", reconcile.DefaultTolerance).String(),
			Usage: "Anchor tolerance in cents/kWh",
		},
		&cli.IntFlag{
			Name:  "workers",
			Value: platform.GetEnvInt("EFLCOST_WORKERS", 4),
			Usage: "Concurrent plans in batch mode",
		},
		&cli.BoolFlag{
			Name:  "minute-resolution",
			Usage: "Project window boundaries as exact HH:MM",
		},
		&cli.StringFlag{
			Name:    "opa-endpoint",
			Usage:   "OPA endpoint for additional serve policies",
			EnvVars: []string{"EFLCOST_OPA_ENDPOINT"},
		},
		&cli.DurationFlag{
			Name:  "opa-timeout",
			Value: platform.GetEnvDuration("EFLCOST_OPA_TIMEOUT", 5*time.Second),
			Usage: "OPA request timeout",
		},
		formatFlag(),
	}
	return &cli.Command{
		Name:   "evaluate",
		Usage:  "Run the full pipeline for one plan or a batch",
		Flags:  append(flags, anchorFlags()...),
		Action: runEvaluate,
	}
}

func runEvaluate(c *cli.Context) error {
	cfg, err := engineConfig(c)
	if err != nil {
		return err
	}
	engine := evaluation.NewEngine(cfg, log.Logger)

	if endpoint := c.String("opa-endpoint"); endpoint != "" {
		client := platform.NewHTTPClient(2, c.Duration("opa-timeout"), log.Logger)
		engine.WithPolicy(policy.NewEngine().WithOPA(endpoint, client))
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		engine.WithStore(store)
	}

	if path := c.String("batch"); path != "" {
		return runBatch(c, engine, path)
	}

	req, err := requestFrom(c)
	if err != nil {
		return err
	}
	report, err := engine.Evaluate(c.Context, req)
	if err != nil {
		return err
	}

	out := c.App.Writer
	switch c.String("format") {
	case "json":
		err = writeJSON(out, report)
	case "markdown":
		err = writeReportMarkdown(out, report)
	default:
		err = writeReportTable(out, report)
	}
	if err != nil {
		return err
	}
	if report.Policy.Decision == policy.DecisionDeny {
		return cli.Exit("", exitDenied)
	}
	return nil
}

func requestFrom(c *cli.Context) (evaluation.Request, error) {
	path := c.String("draft")
	if path == "" {
		return evaluation.Request{}, fmt.Errorf("--draft or --batch is required")
	}
	draft, err := os.ReadFile(path)
	if err != nil {
		return evaluation.Request{}, fmt.Errorf("failed to read draft: %w", err)
	}

	req := evaluation.Request{
		PlanID:    c.String("plan-id"),
		DraftJSON: draft,
		Anchors:   anchorsFrom(c),
	}
	if req.PlanID == "" {
		req.PlanID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if textPath := c.String("text"); textPath != "" {
		text, err := os.ReadFile(textPath)
		if err != nil {
			return evaluation.Request{}, fmt.Errorf("failed to read disclosure text: %w", err)
		}
		req.Text = string(text)
	}
	return req, nil
}

func runBatch(c *cli.Context, engine *evaluation.Engine, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read batch: %w", err)
	}
	var reqs []evaluation.Request
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return fmt.Errorf("failed to parse batch: %w", err)
	}

	items, err := engine.EvaluateBatch(c.Context, reqs)
	if err != nil {
		return err
	}
	if c.String("format") == "json" {
		return writeJSON(c.App.Writer, items)
	}
	return writeBatchTable(c.App.Writer, items)
}

// =============================================================================
// INSPECTION COMMANDS
// =============================================================================

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Structurally validate a draft rate model",
		Flags: []cli.Flag{draftFlag(), formatFlag()},
		Action: func(c *cli.Context) error {
			m, err := readDraft(c.String("draft"))
			if err != nil {
				return err
			}
			v := validation.Validate(m)
			if c.String("format") == "json" {
				if err := writeJSON(c.App.Writer, v); err != nil {
					return err
				}
			} else {
				writeIssues(c.App.Writer, "Validation", v.IsValid, v.Issues)
			}
			if !v.IsValid {
				return cli.Exit("", exitDenied)
			}
			return nil
		},
	}
}

func projectCommand() *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Project a valid rate model onto the downstream rate structure",
		Flags: []cli.Flag{
			draftFlag(),
			&cli.BoolFlag{
				Name:  "minute-resolution",
				Usage: "Emit exact HH:MM window boundaries",
			},
		},
		Action: func(c *cli.Context) error {
			m, err := readDraft(c.String("draft"))
			if err != nil {
				return err
			}
			rs, issues, err := wire.Project(m, wire.Options{MinuteResolution: c.Bool("minute-resolution")})
			if err != nil {
				return err
			}
			for _, i := range issues {
				log.Warn().Str("code", i.Code).Msg(i.Message)
			}
			return writeJSON(c.App.Writer, rs)
		},
	}
}

func priceCommand() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "Price one interval, or a synthetic billing month with --monthly-kwh",
		Flags: []cli.Flag{
			draftFlag(),
			&cli.StringFlag{
				Name:  "at",
				Value: "2025-01-01T00:00:00",
				Usage: "Interval start in local time (2006-01-02T15:04:05)",
			},
			&cli.Float64Flag{Name: "import-kwh", Usage: "Imported kWh in the interval"},
			&cli.Float64Flag{Name: "export-kwh", Usage: "Exported kWh in the interval"},
			&cli.Float64Flag{Name: "monthly-kwh", Usage: "Price a 30-day flat-profile month of this usage"},
		},
		Action: func(c *cli.Context) error {
			m, err := readDraft(c.String("draft"))
			if err != nil {
				return err
			}
			if c.IsSet("monthly-kwh") {
				bill := billing.Compute(m, estimation.SyntheticMonth(c.Float64("monthly-kwh")))
				return writeJSON(c.App.Writer, struct {
					billing.Bill
					AverageCentsPerKwh decimal.Decimal `json:"averageCentsPerKwh"`
				}{bill, bill.AverageCentsPerKwh().Round(estimation.AverageScale)})
			}

			ts, err := time.Parse("2006-01-02T15:04:05", c.String("at"))
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			return writeJSON(c.App.Writer, pricer.Price(m, ts, c.Float64("import-kwh"), c.Float64("export-kwh")))
		},
	}
}

func computabilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "computability",
		Usage: "Report which usage history a plan needs to be priced",
		Flags: append([]cli.Flag{draftFlag()}, anchorFlags()...),
		Action: func(c *cli.Context) error {
			m, err := readDraft(c.String("draft"))
			if err != nil {
				return err
			}
			v := computability.Advise(m, anchorsFrom(c))
			return writeJSON(c.App.Writer, struct {
				computability.Envelope
				Granularity computability.Granularity `json:"granularity"`
				Detail      string                    `json:"detail,omitempty"`
			}{v.Envelope(), v.Granularity, v.Detail})
		},
	}
}

// =============================================================================
// QUEUE COMMAND
// =============================================================================

func queueCommand() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect the manual-review queue",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List plans awaiting review, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum rows"},
					formatFlag(),
				},
				Action: func(c *cli.Context) error {
					store, err := openStore(c)
					if err != nil {
						return err
					}
					if store == nil {
						return fmt.Errorf("queue list needs --store sqlite or --store clickhouse")
					}
					defer store.Close()

					recs, err := store.ListReviewQueue(c.Context, c.Int("limit"))
					if err != nil {
						return err
					}
					if c.String("format") == "json" {
						return writeJSON(c.App.Writer, recs)
					}
					return writeQueueTable(c.App.Writer, recs)
				},
			},
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"efl-cost/decision/evaluation"
	"efl-cost/decision/policy"
	"efl-cost/pkg/diag"
)

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func decisionIcon(d policy.Decision) string {
	switch d {
	case policy.DecisionPass:
		return "✅ PASS"
	case policy.DecisionWarn:
		return "⚠️  WARN"
	case policy.DecisionDeny:
		return "❌ DENY"
	}
	return string(d)
}

func writeReportTable(w io.Writer, r *evaluation.Report) error {
	rec := r.Reconciliation
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  Plan:                  %-38s ║\n", truncate(r.PlanID, 38))
	fmt.Fprintf(w, "║  Run:                   %-38s ║\n", r.RunID)
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Reconciliation:        %-38s ║\n", fmt.Sprintf("%s (%s)", rec.Status, rec.ReasonCode))
	if len(rec.SolverStepsApplied) > 0 {
		fmt.Fprintf(w, "║  Repair:                %-38s ║\n", strings.Join(rec.SolverStepsApplied, ", "))
	}
	fmt.Fprintf(w, "║  Strength:              %-38s ║\n", fmt.Sprintf("%s (%.0f%%)", r.Strength.Strength, r.Strength.Confidence*100))
	fmt.Fprintf(w, "║  Computability:         %-38s ║\n", truncate(r.Computability.ReasonCode, 38))
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(w, "║  ANCHORS (¢/kWh)        expected     modeled      diff        ║")
	for _, d := range rec.AnchorDiffs {
		fmt.Fprintf(w, "║  %6.0f kWh             %-12s %-12s %-11s ║\n",
			d.UsageKwh, fixed(d.ExpectedAvgCents), fixed(d.ModeledAvgCents), fixed(d.DiffCents))
	}
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Policy Result:         %-38s ║\n", decisionIcon(r.Policy.Decision))
	for _, v := range r.Policy.Violations {
		fmt.Fprintf(w, "║  ❌ %-57s ║\n", truncate(v.Message, 57))
	}
	for _, wn := range r.Policy.Warnings {
		fmt.Fprintf(w, "║  ⚠️  %-56s ║\n", truncate(wn.Message, 56))
	}
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	if rec.QueueReason != "" {
		fmt.Fprintf(w, "Queue reason: %s\n", rec.QueueReason)
	}
	return nil
}

func writeReportMarkdown(w io.Writer, r *evaluation.Report) error {
	rec := r.Reconciliation
	fmt.Fprintf(w, "## Plan %s\n\n", r.PlanID)
	fmt.Fprintln(w, "| Check | Result |")
	fmt.Fprintln(w, "|-------|--------|")
	fmt.Fprintf(w, "| **Reconciliation** | %s (%s) |\n", rec.Status, rec.ReasonCode)
	if len(rec.SolverStepsApplied) > 0 {
		fmt.Fprintf(w, "| **Repair** | %s |\n", strings.Join(rec.SolverStepsApplied, ", "))
	}
	fmt.Fprintf(w, "| **Strength** | %s |\n", r.Strength.Strength)
	fmt.Fprintf(w, "| **Computability** | %s |\n", r.Computability.ReasonCode)
	fmt.Fprintf(w, "| **Policy Result** | %s |\n", r.Policy.Decision)

	if len(rec.AnchorDiffs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Anchors")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Usage (kWh) | Expected ¢/kWh | Modeled ¢/kWh | Diff |")
		fmt.Fprintln(w, "|-------------|----------------|---------------|------|")
		for _, d := range rec.AnchorDiffs {
			fmt.Fprintf(w, "| %.0f | %s | %s | %s |\n", d.UsageKwh, fixed(d.ExpectedAvgCents), fixed(d.ModeledAvgCents), fixed(d.DiffCents))
		}
	}

	if len(r.Policy.Violations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### ❌ Policy Violations")
		fmt.Fprintln(w)
		for _, v := range r.Policy.Violations {
			fmt.Fprintf(w, "- **%s**: %s\n", v.PolicyName, v.Message)
		}
	}
	if rec.QueueReason != "" {
		fmt.Fprintf(w, "\n> %s\n", rec.QueueReason)
	}
	return nil
}

func writeBatchTable(w io.Writer, items []evaluation.BatchItem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAN\tRECONCILE\tSTRENGTH\tDECISION\tNOTE")
	for _, it := range items {
		if it.Report == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", it.PlanID, truncate(it.Error, 60))
			continue
		}
		r := it.Report
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.PlanID, r.Reconciliation.Status, r.Strength.Strength,
			r.Policy.Decision, truncate(r.Reconciliation.QueueReason, 60))
	}
	return tw.Flush()
}

func writeQueueTable(w io.Writer, recs []evaluation.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EVALUATED\tPLAN\tRECONCILE\tSTRENGTH\tDECISION\tREASON")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.EvaluatedAt.Format("2006-01-02 15:04"), r.PlanID,
			r.ReconcileStatus, r.Strength, r.Decision, truncate(r.QueueReason, 60))
	}
	return tw.Flush()
}

func writeIssues(w io.Writer, title string, ok bool, issues diag.List) {
	status := "✅ valid"
	if !ok {
		status = "❌ requires manual review"
	}
	fmt.Fprintf(w, "%s: %s\n", title, status)
	for _, i := range issues {
		fmt.Fprintf(w, "  [%s] %s: %s\n", i.Severity, i.Code, i.Message)
	}
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(4)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

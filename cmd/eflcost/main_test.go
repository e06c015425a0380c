package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"efl-cost/decision/evaluation"
	"efl-cost/decision/policy"
	"efl-cost/decision/reconcile"
)

const flatDraft = `{"planType":"FLAT","defaultRateCentsPerKwh":14}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"eflcost", "--log-level", "error"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestEvaluateJSON(t *testing.T) {
	draft := writeFile(t, "flat-14.json", flatDraft)

	out, err := run(t, "evaluate", "--draft", draft, "--format", "json",
		"--anchor-500", "14", "--anchor-1000", "14", "--anchor-2000", "14")
	require.NoError(t, err)

	var report evaluation.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "flat-14", report.PlanID)
	assert.Equal(t, reconcile.StatusPass, report.Reconciliation.Status)
	assert.Equal(t, policy.DecisionPass, report.Policy.Decision)
	require.NotNil(t, report.RateStructure)
}

func TestEvaluateDeniedIsQueued(t *testing.T) {
	draft := writeFile(t, "flat-10.json", `{"planType":"FLAT","defaultRateCentsPerKwh":10}`)
	db := filepath.Join(t.TempDir(), "queue.db")

	out, err := run(t, "--store", "sqlite", "--sqlite-path", db,
		"evaluate", "--draft", draft, "--anchor-500", "10", "--anchor-1000", "14", "--anchor-2000", "22")
	require.Error(t, err)
	assert.Equal(t, exitDenied, exitCode(err))
	assert.Contains(t, out, "DENY")

	out, err = run(t, "--store", "sqlite", "--sqlite-path", db, "queue", "list", "--format", "json")
	require.NoError(t, err)
	var recs []evaluation.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "flat-10", recs[0].PlanID)
	assert.Equal(t, "deny", recs[0].Decision)
}

func TestEvaluateBatch(t *testing.T) {
	batch := writeFile(t, "batch.json", `[
		{"planId":"a","draft":`+flatDraft+`,"anchors":{"at500":14,"at1000":14,"at2000":14}},
		{"planId":"b","draft":{"planType":"NOPE"},"anchors":{"at1000":14}}
	]`)

	out, err := run(t, "evaluate", "--batch", batch, "--format", "json")
	require.NoError(t, err)

	var items []evaluation.BatchItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].PlanID)
	require.NotNil(t, items[0].Report)
	assert.Equal(t, "b", items[1].PlanID)
	assert.NotEmpty(t, items[1].Error)
}

func TestValidateCommand(t *testing.T) {
	valid := writeFile(t, "ok.json", flatDraft)
	out, err := run(t, "validate", "--draft", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	invalid := writeFile(t, "bad.json", `{"planType":"FLAT","defaultRateCentsPerKwh":-1}`)
	out, err = run(t, "validate", "--draft", invalid)
	assert.Equal(t, exitDenied, exitCode(err))
	assert.Contains(t, out, "NEGATIVE_DEFAULT_RATE")
}

func TestProjectCommand(t *testing.T) {
	draft := writeFile(t, "flat.json", flatDraft)
	out, err := run(t, "project", "--draft", draft)
	require.NoError(t, err)

	var rs map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rs))
	assert.Equal(t, 14.0, rs["energyRateCents"])
}

func TestPriceCommand(t *testing.T) {
	draft := writeFile(t, "flat.json", flatDraft)

	out, err := run(t, "price", "--draft", draft, "--at", "2025-01-06T14:00:00", "--import-kwh", "2")
	require.NoError(t, err)
	var charge map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &charge))
	assert.Equal(t, "0.28", charge["importChargeDollars"])

	out, err = run(t, "price", "--draft", draft, "--monthly-kwh", "1000")
	require.NoError(t, err)
	var bill map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &bill))
	total, err := decimal.NewFromString(bill["totalDollars"].(string))
	require.NoError(t, err)
	assert.Equal(t, "140.00", total.StringFixed(2))
	assert.Equal(t, "14", bill["averageCentsPerKwh"])
}

func TestComputabilityCommand(t *testing.T) {
	draft := writeFile(t, "flat.json", flatDraft)
	out, err := run(t, "computability", "--draft", draft)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "COMPUTABLE", env["planCalcStatus"])
	assert.Equal(t, "MONTHLY_TOTAL", env["granularity"])
}

func TestUnknownStore(t *testing.T) {
	_, err := run(t, "--store", "postgres", "queue", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

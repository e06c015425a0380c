package ratemodel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrDraftRejected wraps every ingest failure so callers can route the
// document to manual review without inspecting messages.
var ErrDraftRejected = errors.New("draft rate model rejected")

const schemaURL = "rate_model.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// BuildRateModelJSONSchema returns the draft contract as a JSON Schema map.
// It checks shape only; value rules (negative rates, coverage, tiers) belong
// to the validator so they surface as coded issues instead of parse errors.
func BuildRateModelJSONSchema() map[string]any {
	planTypes := make([]any, 0, len(PlanTypes))
	for _, p := range PlanTypes {
		planTypes = append(planTypes, string(p))
	}

	window := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"label":           map[string]any{"type": "string"},
			"startHour":       map[string]any{"type": "number"},
			"endHour":         map[string]any{"type": "number"},
			"daysOfWeek":      intArray(),
			"months":          nullable(intArray()),
			"rateCentsPerKwh": decimalProp(),
			"isFree":          map[string]any{"type": "boolean"},
		},
		"required": []any{"startHour", "endHour", "daysOfWeek"},
	}
	tier := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"minKwh":          map[string]any{"type": "number"},
			"maxKwh":          map[string]any{"type": []any{"number", "null"}},
			"rateCentsPerKwh": decimalProp(),
		},
		"required": []any{"minKwh", "rateCentsPerKwh"},
	}
	credit := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"label":         map[string]any{"type": "string"},
			"creditDollars": decimalProp(),
			"thresholdKwh":  map[string]any{"type": []any{"number", "null"}},
			"maxKwh":        map[string]any{"type": []any{"number", "null"}},
			"monthsOfYear":  nullable(intArray()),
		},
		"required": []any{"creditDollars"},
	}
	minFee := map[string]any{
		"type":                 []any{"object", "null"},
		"additionalProperties": false,
		"properties": map[string]any{
			"feeDollars":   decimalProp(),
			"thresholdKwh": map[string]any{"type": "number"},
		},
		"required": []any{"feeDollars", "thresholdKwh"},
	}
	buyback := map[string]any{
		"type":                 []any{"object", "null"},
		"additionalProperties": false,
		"properties": map[string]any{
			"hasBuyback":          map[string]any{"type": "boolean"},
			"creditCentsPerKwh":   decimalProp(),
			"matchesImportRate":   map[string]any{"type": []any{"boolean", "null"}},
			"maxMonthlyExportKwh": map[string]any{"type": []any{"number", "null"}},
		},
		"required": []any{"hasBuyback"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"planType":                   map[string]any{"type": "string", "enum": planTypes},
			"defaultRateCentsPerKwh":     decimalProp(),
			"baseChargeCentsPerMonth":    decimalProp(),
			"timeWindows":                nullable(map[string]any{"type": "array", "items": window}),
			"usageTiers":                 nullable(map[string]any{"type": "array", "items": tier}),
			"billCredits":                nullable(map[string]any{"type": "array", "items": credit}),
			"minimumUsageFee":            minFee,
			"solarBuyback":               buyback,
			"variableIndexType":          map[string]any{"type": []any{"string", "null"}},
			"currentBillEnergyRateCents": decimalProp(),
		},
		"required": []any{"planType"},
	}
}

// decimalProp accepts a JSON number, a numeric string, or null.
func decimalProp() map[string]any {
	return map[string]any{
		"type":    []any{"number", "string", "null"},
		"pattern": `^-?\d+(\.\d+)?$`,
	}
}

func intArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}
}

func nullable(schema map[string]any) map[string]any {
	return map[string]any{"anyOf": []any{schema, map[string]any{"type": "null"}}}
}

func rateModelSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(BuildRateModelJSONSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ParseDraft is the single ingest step for drafting output: the document must
// match the schema and decode into a RateModel with no unknown fields, or it is
// rejected whole.
func ParseDraft(data []byte) (*RateModel, error) {
	schema, err := rateModelSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrDraftRejected, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: json does not match schema: %v", ErrDraftRejected, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var model RateModel
	if err := dec.Decode(&model); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDraftRejected, err)
	}
	return &model, nil
}

// ReadDraft reads and parses a draft document.
func ReadDraft(r io.Reader) (*RateModel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	return ParseDraft(data)
}

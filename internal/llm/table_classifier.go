package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// TableClassifier asks a model for a table's load semantics.
type TableClassifier struct {
	*caller
	logger *slog.Logger
}

// NewTableClassifier wraps a client with rate limiting, retries and a
// per-call timeout taken from cfg.
func NewTableClassifier(client Client, cfg Config, logger *slog.Logger) *TableClassifier {
	return &TableClassifier{
		caller: newCaller(client, cfg),
		logger: common.LoggerOrDefault(logger),
	}
}

// MappingWriter returns a writer that shares this classifier's client, rate
// limit and retry policy.
func (c *TableClassifier) MappingWriter() *MappingWriter {
	return &MappingWriter{caller: c.caller, logger: c.logger}
}

// ClassifyTable returns the model's verdict for one table.
func (c *TableClassifier) ClassifyTable(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error) {
	prompt := BuildTablePrompt(req)

	var verdict model.SemanticVerdict
	err := c.call(ctx, prompt, tableClassifierSystemPrompt, func(text string) error {
		v, err := parseVerdict(text)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return model.SemanticVerdict{}, fmt.Errorf("%w: %s: %w", common.ErrClassificationFailed, req.TableName, err)
	}

	c.logger.Debug("model classified table",
		"table", req.TableName,
		"kind", verdict.Kind,
		"confidence", verdict.Confidence)

	return verdict, nil
}

// Calls reports how many model calls were attempted, mapping calls included.
func (c *TableClassifier) Calls() int64 {
	return c.calls.Load()
}

// verdictResponse accepts the field names models tend to use.
type verdictResponse struct {
	TableType      string `json:"table_type"`
	Classification string `json:"classification"`
	Kind           string `json:"kind"`
	SCDType        any    `json:"scd_type"`
	Confidence     any    `json:"confidence"`
	Reasoning      string `json:"reasoning"`
}

func parseVerdict(text string) (model.SemanticVerdict, error) {
	var resp verdictResponse
	if err := ParseInto(text, &resp); err != nil {
		return model.SemanticVerdict{}, err
	}

	label := firstNonEmpty(resp.TableType, resp.Classification, resp.Kind, scdLabel(resp.SCDType))
	kind, ok := model.ParseTableKind(label)
	if !ok {
		return model.SemanticVerdict{}, fmt.Errorf("%w: %q", common.ErrUnrecognizedDecision, label)
	}

	return model.SemanticVerdict{
		Kind:       kind,
		Confidence: parseConfidence(resp.Confidence),
		Reasoning:  strings.TrimSpace(resp.Reasoning),
	}, nil
}

// scdLabel turns {"scd_type": 2} or {"scd_type": "2"} into "type2".
func scdLabel(v any) string {
	switch t := v.(type) {
	case float64:
		return "type" + strconv.Itoa(int(t))
	case string:
		if _, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return "type" + strings.TrimSpace(t)
		}
		return t
	default:
		return ""
	}
}

func parseConfidence(v any) model.Confidence {
	switch t := v.(type) {
	case float64:
		if t > 1 {
			t /= 100
		}
		return model.ConfidenceFromScore(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return parseConfidence(f)
		}
		return model.ParseConfidence(t)
	case json.Number:
		f, _ := t.Float64()
		return parseConfidence(f)
	default:
		return model.ConfidenceLow
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package model

import "strings"

// TableKind is the load semantics chosen for a table.
type TableKind string

// Table kind constants.
const (
	KindStandard    TableKind = "standard"
	KindHistory     TableKind = "history"
	KindIncremental TableKind = "incremental"
)

// ParseTableKind maps classifier vocabulary onto a TableKind. The second
// return value is false for labels that name no known kind.
func ParseTableKind(s string) (TableKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "type1", "type_1", "scd1", "scd_type_1", "full_refresh", "reference":
		return KindStandard, true
	case "history", "type2", "type_2", "scd2", "scd_type_2", "historical":
		return KindHistory, true
	case "incremental", "merge", "append", "fact":
		return KindIncremental, true
	default:
		return "", false
	}
}

// Confidence is a coarse certainty level attached to a decision.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence accepts the level names; anything else is low.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium", "med", "moderate":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ConfidenceFromScore buckets a 0..1 score.
func ConfidenceFromScore(score float64) Confidence {
	switch {
	case score >= 0.85:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// DecisionSource records which rule produced a decision.
type DecisionSource string

// Decision sources.
const (
	SourceExplicitList DecisionSource = "explicit_list"
	SourcePattern      DecisionSource = "pattern"
	SourceModel        DecisionSource = "model"
	SourceDefault      DecisionSource = "default"
)

// ClassificationDecision is the outcome of classifying one table.
type ClassificationDecision struct {
	TableName  string         `json:"table_name"`
	Kind       TableKind      `json:"kind"`
	Confidence Confidence     `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Source     DecisionSource `json:"source"`
}

// SemanticRequest is what the model-based classifier sees of a table.
type SemanticRequest struct {
	TableName   string
	Domain      string
	Columns     []Column
	PrimaryKeys []string
}

// SemanticVerdict is the model-based classifier's answer.
type SemanticVerdict struct {
	Kind       TableKind
	Confidence Confidence
	Reasoning  string
}

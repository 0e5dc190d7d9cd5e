package config

import (
	"fmt"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
)

// DefaultWorkers bounds the per-stage fan-out.
const DefaultWorkers = 5

// Config is the explicit run configuration handed to every component.
type Config struct {
	SourceSystem   string
	ProfilesDir    string
	TypeOverrides  string
	OutputRoot     string
	DatabasePath   string
	Warehouse      WarehouseConfig
	Classification ClassificationConfig
	History        HistoryConfig
	Validation     ValidationConfig
	Workers        int
}

// ClassificationConfig extends the profile's static lists and toggles the
// model-based classifier.
type ClassificationConfig struct {
	ReferenceTables     []string
	HistoryTables       []string
	IncrementalPatterns []string
	SemanticTimeout     time.Duration
	Semantic            bool
}

// HistoryConfig controls the change-tracked template.
type HistoryConfig struct {
	// CompareColumns limits how many non-key columns take part in change
	// detection. Zero compares all of them.
	CompareColumns int
}

// ValidationConfig controls the data-quality checks generated per table.
type ValidationConfig struct {
	Assertions bool
}

// WarehouseConfig carries project-level settings for the generated tree.
type WarehouseConfig struct {
	Project         string
	Location        string
	DefaultDataset  string
	AssertionSchema string
	StagingPrefix   string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SourceSystem: "sybase",
		OutputRoot:   "runs",
		Workers:      DefaultWorkers,
		Classification: ClassificationConfig{
			SemanticTimeout: 60 * time.Second,
		},
		Validation: ValidationConfig{
			Assertions: true,
		},
		Warehouse: WarehouseConfig{
			Location:        "australia-southeast2",
			AssertionSchema: "dataform_assertions",
			StagingPrefix:   "stg_",
		},
	}
}

// Validate checks the configuration for values that would make a run fail later.
func (c Config) Validate() error {
	if c.SourceSystem == "" {
		return &common.ConfigError{Err: common.ErrMissingConfig, Field: "source_system"}
	}
	if c.OutputRoot == "" {
		return &common.ConfigError{Err: common.ErrMissingConfig, Field: "output_root"}
	}
	if c.Workers < 1 {
		return &common.ConfigError{Err: common.ErrInvalidConfig, Field: fmt.Sprintf("workers=%d", c.Workers)}
	}
	if c.History.CompareColumns < 0 {
		return &common.ConfigError{Err: common.ErrInvalidConfig, Field: fmt.Sprintf("history.compare_columns=%d", c.History.CompareColumns)}
	}
	if c.Classification.Semantic && c.Classification.SemanticTimeout <= 0 {
		return &common.ConfigError{Err: common.ErrInvalidConfig, Field: "llm.timeout"}
	}
	return nil
}

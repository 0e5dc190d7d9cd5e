package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load builds a Config from Viper and environment variables.
// Precedence:
// 1. Viper configuration (config file, MIGRATE_ env vars, bound flags)
// 2. Direct environment variables (TYPE_MAPPING_BUCKET, TYPE_MAPPING_PATH)
// 3. Default values
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if v := viper.GetString("source_system"); v != "" {
		cfg.SourceSystem = strings.ToLower(v)
	}
	if v := viper.GetString("profiles_dir"); v != "" {
		cfg.ProfilesDir = ExpandPath(v)
	}
	if v := viper.GetString("type_overrides"); v != "" {
		cfg.TypeOverrides = ExpandPath(v)
	}
	if v := viper.GetString("output_root"); v != "" {
		cfg.OutputRoot = ExpandPath(v)
	}
	if v := viper.GetString("database.path"); v != "" {
		cfg.DatabasePath = ExpandPath(v)
	}
	if viper.IsSet("workers") {
		cfg.Workers = viper.GetInt("workers")
	}

	cfg.Classification.Semantic = viper.GetBool("classification.semantic")
	cfg.Classification.ReferenceTables = viper.GetStringSlice("classification.reference_tables")
	cfg.Classification.HistoryTables = viper.GetStringSlice("classification.history_tables")
	cfg.Classification.IncrementalPatterns = viper.GetStringSlice("classification.incremental_patterns")
	if v := viper.GetDuration("llm.timeout"); v > 0 {
		cfg.Classification.SemanticTimeout = v
	}

	cfg.History.CompareColumns = viper.GetInt("history.compare_columns")
	if viper.IsSet("validation.assertions") {
		cfg.Validation.Assertions = viper.GetBool("validation.assertions")
	}

	if v := viper.GetString("warehouse.project"); v != "" {
		cfg.Warehouse.Project = v
	}
	if v := viper.GetString("warehouse.location"); v != "" {
		cfg.Warehouse.Location = v
	}
	if v := viper.GetString("warehouse.default_dataset"); v != "" {
		cfg.Warehouse.DefaultDataset = v
	}
	if v := viper.GetString("warehouse.assertion_schema"); v != "" {
		cfg.Warehouse.AssertionSchema = v
	}
	if viper.IsSet("warehouse.staging_prefix") {
		cfg.Warehouse.StagingPrefix = viper.GetString("warehouse.staging_prefix")
	}

	if cfg.TypeOverrides == "" {
		cfg.TypeOverrides = overridesFromEnv()
	}
	if cfg.Warehouse.Project == "" {
		cfg.Warehouse.Project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// overridesFromEnv assembles a gs:// URI from the bucket/path variables used
// by existing deployments.
func overridesFromEnv() string {
	bucket := os.Getenv("TYPE_MAPPING_BUCKET")
	if bucket == "" {
		return ""
	}
	path := os.Getenv("TYPE_MAPPING_PATH")
	if path == "" {
		path = "config/type_mappings.txt"
	}
	return "gs://" + bucket + "/" + strings.TrimPrefix(path, "/")
}

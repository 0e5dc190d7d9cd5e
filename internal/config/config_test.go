package config

import (
	"testing"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		setup   func(t *testing.T)
		check   func(t *testing.T, cfg *Config)
		name    string
		wantErr bool
	}{
		{
			name: "defaults",
			setup: func(t *testing.T) {
				t.Setenv("TYPE_MAPPING_BUCKET", "")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sybase", cfg.SourceSystem)
				assert.Equal(t, DefaultWorkers, cfg.Workers)
				assert.Equal(t, "stg_", cfg.Warehouse.StagingPrefix)
				assert.Equal(t, 60*time.Second, cfg.Classification.SemanticTimeout)
				assert.Empty(t, cfg.TypeOverrides)
				assert.True(t, cfg.Validation.Assertions)
			},
		},
		{
			name: "viper values",
			setup: func(_ *testing.T) {
				viper.Set("source_system", "Oracle")
				viper.Set("workers", 8)
				viper.Set("classification.semantic", true)
				viper.Set("classification.history_tables", []string{"d_patron"})
				viper.Set("history.compare_columns", 10)
				viper.Set("llm.timeout", "5s")
				viper.Set("validation.assertions", false)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "oracle", cfg.SourceSystem)
				assert.Equal(t, 8, cfg.Workers)
				assert.True(t, cfg.Classification.Semantic)
				assert.Equal(t, []string{"d_patron"}, cfg.Classification.HistoryTables)
				assert.Equal(t, 10, cfg.History.CompareColumns)
				assert.Equal(t, 5*time.Second, cfg.Classification.SemanticTimeout)
				assert.False(t, cfg.Validation.Assertions)
			},
		},
		{
			name: "overrides from bucket env",
			setup: func(t *testing.T) {
				t.Setenv("TYPE_MAPPING_BUCKET", "crown-config")
				t.Setenv("TYPE_MAPPING_PATH", "")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "gs://crown-config/config/type_mappings.txt", cfg.TypeOverrides)
			},
		},
		{
			name: "invalid workers",
			setup: func(_ *testing.T) {
				viper.Set("workers", 0)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			tt.setup(t)

			cfg, err := Load()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.History.CompareColumns = -1
	assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.OutputRoot = ""
	assert.ErrorIs(t, cfg.Validate(), common.ErrMissingConfig)
}

package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/danielzillmann-hue/transformation-agent/internal/config"
)

// ProjectFileName is the project settings file at the root of the tree.
const ProjectFileName = "dataform.json"

// projectSettings mirrors dataform.json.
type projectSettings struct {
	DefaultProject  string `json:"defaultProject"`
	DefaultLocation string `json:"defaultLocation"`
	DefaultDataset  string `json:"defaultDataset"`
	AssertionSchema string `json:"assertionSchema"`
	Warehouse       string `json:"warehouse"`
	DefaultDatabase string `json:"defaultDatabase"`
}

// ProjectSettings renders dataform.json. defaultDataset falls back to
// fallbackDataset when the configuration leaves it empty.
func ProjectSettings(cfg config.WarehouseConfig, fallbackDataset string) ([]byte, error) {
	dataset := cfg.DefaultDataset
	if dataset == "" {
		dataset = fallbackDataset
	}

	data, err := json.MarshalIndent(projectSettings{
		DefaultProject:  cfg.Project,
		DefaultLocation: cfg.Location,
		DefaultDataset:  dataset,
		AssertionSchema: cfg.AssertionSchema,
		Warehouse:       "bigquery",
		DefaultDatabase: cfg.Project,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project settings: %w", err)
	}
	return append(data, '\n'), nil
}

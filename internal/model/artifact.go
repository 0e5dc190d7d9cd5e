package model

// Artifact is one generated schema-as-code definition.
type Artifact struct {
	TableName  string    `json:"table_name"`
	DomainSlug string    `json:"domain_slug"`
	TableSlug  string    `json:"table_slug"`
	Dataset    string    `json:"dataset"`
	Kind       TableKind `json:"kind"`
	Path       string    `json:"path"`
	Content    string    `json:"-"`
}

// Assertion is one generated data-quality check on a migrated table.
type Assertion struct {
	TableName   string `json:"table_name"`
	Name        string `json:"name"`
	Check       string `json:"check"`
	Description string `json:"description"`
	Path        string `json:"path"`
	Content     string `json:"-"`
}

// MappingArtifact is the view generated for one ETL mapping.
type MappingArtifact struct {
	MappingName string   `json:"mapping_name"`
	FileName    string   `json:"file_name"`
	Dataset     string   `json:"dataset"`
	Path        string   `json:"path"`
	Sources     []string `json:"sources"`
	Targets     []string `json:"targets"`
	// ModelWritten is false for the scaffold rendered without a model.
	ModelWritten bool   `json:"model_written"`
	Content      string `json:"-"`
}

// SharedObject is an ETL export that holds reusable objects rather than a
// runnable mapping. It is documented instead of converted.
type SharedObject struct {
	FileName     string `json:"file_name"`
	Name         string `json:"name"`
	LogicSummary string `json:"logic_summary"`
}

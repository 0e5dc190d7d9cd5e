package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var embeddedProfiles embed.FS

// FallbackDataset is used when a profile maps neither the domain nor a default.
const FallbackDataset = "staging"

var defaultType2Indicators = []string{
	"effective_date", "expiry_date", "valid_from", "valid_to",
	"is_current", "current_flag", "version",
}

// Profile describes one legacy source system: its type table, static
// classification lists and dataset layout.
type Profile struct {
	SCDDetection        SCDDetection      `yaml:"scd_detection"`
	TypeMappings        map[string]string `yaml:"type_mappings"`
	DomainMapping       map[string]string `yaml:"domain_mapping"`
	Name                string            `yaml:"name"`
	Description         string            `yaml:"description"`
	DefaultDomain       string            `yaml:"default_domain"`
	Source              string            `yaml:"-"`
	FilePatterns        FilePatterns      `yaml:"file_patterns"`
	IncrementalPatterns []string          `yaml:"incremental_patterns"`
}

// SCDDetection lists tables with known load semantics.
type SCDDetection struct {
	Type1Tables           []string `yaml:"type1_tables"`
	Type2Tables           []string `yaml:"type2_tables"`
	Type2ColumnIndicators []string `yaml:"type2_column_indicators"`
}

// FilePatterns drives file kind detection for raw source files.
type FilePatterns struct {
	DDL        FilePattern `yaml:"ddl"`
	Procedures FilePattern `yaml:"procedures"`
	ETLExports FilePattern `yaml:"etl_exports"`
}

// FilePattern matches files by extension and, optionally, name prefix.
type FilePattern struct {
	Extensions []string `yaml:"extensions"`
	Prefixes   []string `yaml:"prefixes"`
}

// ParseProfile decodes and validates a profile document. source names the
// document in error messages.
func ParseProfile(data []byte, source string) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &common.ConfigError{Err: common.ErrInvalidConfig, Source: source, Field: err.Error()}
	}
	p.Source = source

	if err := p.Validate(); err != nil {
		return nil, err
	}

	normalized := make(map[string]string, len(p.TypeMappings))
	for k, v := range p.TypeMappings {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	p.TypeMappings = normalized

	return &p, nil
}

// Validate reports missing required fields and patterns that do not compile.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &common.ConfigError{Err: common.ErrMissingConfig, Source: p.Source, Field: "name"}
	}
	if p.TypeMappings == nil {
		return &common.ConfigError{Err: common.ErrMissingConfig, Source: p.Source, Field: "type_mappings"}
	}
	for _, pattern := range p.IncrementalPatterns {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return &common.ConfigError{
				Err:    common.ErrInvalidConfig,
				Source: p.Source,
				Field:  fmt.Sprintf("incremental_patterns %q: %v", pattern, err),
			}
		}
	}
	return nil
}

// BuiltinTypes returns a copy of the profile's type table.
func (p *Profile) BuiltinTypes() map[string]string {
	out := make(map[string]string, len(p.TypeMappings))
	for k, v := range p.TypeMappings {
		out[k] = v
	}
	return out
}

// Domain returns the domain assigned to tables without field votes.
func (p *Profile) Domain() string {
	if p.DefaultDomain != "" {
		return p.DefaultDomain
	}
	return model.DefaultDomain
}

// DatasetFor maps a business domain to a warehouse dataset.
func (p *Profile) DatasetFor(domain string) string {
	if ds, ok := p.DomainMapping[domain]; ok && ds != "" {
		return ds
	}
	if ds, ok := p.DomainMapping["default"]; ok && ds != "" {
		return ds
	}
	return FallbackDataset
}

// Type2Indicators lists column names that carry history metadata in the source.
func (p *Profile) Type2Indicators() []string {
	if len(p.SCDDetection.Type2ColumnIndicators) > 0 {
		return p.SCDDetection.Type2ColumnIndicators
	}
	return defaultType2Indicators
}

// FileKind classifies a raw source file by name. Procedure patterns are checked
// first because they usually share the DDL extension.
func (p *Profile) FileKind(filename string) model.FileKind {
	base := strings.ToLower(path.Base(filepath.ToSlash(filename)))

	if p.FilePatterns.Procedures.match(base, true) {
		return model.FileKindProcedure
	}
	if p.FilePatterns.DDL.match(base, false) {
		return model.FileKindDDL
	}
	if p.FilePatterns.ETLExports.match(base, false) {
		return model.FileKindETLMapping
	}

	switch path.Ext(base) {
	case ".sql":
		return model.FileKindDDL
	case ".xml":
		return model.FileKindETLMapping
	default:
		return model.FileKindUnknown
	}
}

func (fp FilePattern) match(base string, needPrefix bool) bool {
	if len(fp.Extensions) == 0 {
		return false
	}

	extOK := false
	for _, ext := range fp.Extensions {
		if strings.HasSuffix(base, strings.ToLower(ext)) {
			extOK = true
			break
		}
	}
	if !extOK {
		return false
	}

	if len(fp.Prefixes) == 0 {
		return !needPrefix
	}
	for _, prefix := range fp.Prefixes {
		if strings.HasPrefix(base, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// LoadProfile finds the named profile in dir, falling back to the profiles
// compiled into the binary.
func LoadProfile(dir, name string) (*Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, &common.ConfigError{Err: common.ErrMissingConfig, Field: "source_system"}
	}

	if dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			file := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(file) //nolint:gosec // path built from configured profile directory
			if err == nil {
				return ParseProfile(data, file)
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read profile %s: %w", file, err)
			}
		}
	}

	file := "profiles/" + name + ".yaml"
	data, err := embeddedProfiles.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownSourceSystem, name)
	}
	return ParseProfile(data, "builtin:"+name)
}

// ListProfiles returns the names of all available profiles, sorted.
// Files starting with an underscore are templates and are skipped.
func ListProfiles(dir string) ([]string, error) {
	seen := make(map[string]bool)

	entries, err := fs.ReadDir(embeddedProfiles, "profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to list builtin profiles: %w", err)
	}
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".yaml")] = true
	}

	if dir != "" {
		dirEntries, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to list profiles in %s: %w", dir, err)
		}
		for _, e := range dirEntries {
			n := e.Name()
			if e.IsDir() || strings.HasPrefix(n, "_") {
				continue
			}
			ext := filepath.Ext(n)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			seen[strings.ToLower(strings.TrimSuffix(n, ext))] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

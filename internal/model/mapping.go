package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// MappingAnalysis is the structured document extracted from an ETL mapping
// record.
type MappingAnalysis struct {
	MappingName     string   `json:"mapping_name"`
	Sources         NameList `json:"sources"`
	Targets         NameList `json:"targets"`
	Transformations NameList `json:"transformations"`
	LogicSummary    string   `json:"logic_summary"`
}

// NameOr returns the mapping name, or the file name without its extension
// when the analyzer left the name out.
func (m MappingAnalysis) NameOr(fileName string) string {
	if name := strings.TrimSpace(m.MappingName); name != "" {
		return name
	}
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// NameList decodes a list whose entries are either plain names or objects
// carrying a "name" (or, failing that, a "type"). A bare string is a list of
// one. Blank entries are dropped.
type NameList []string

// UnmarshalJSON implements json.Unmarshaler.
func (n *NameList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*n = appendName(nil, single)
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("name list must be a string or an array: %w", err)
	}

	out := make(NameList, 0, len(entries))
	for _, raw := range entries {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			out = appendName(out, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		if strings.TrimSpace(obj.Name) != "" {
			out = appendName(out, obj.Name)
		} else {
			out = appendName(out, obj.Type)
		}
	}
	*n = out
	return nil
}

func appendName(list NameList, name string) NameList {
	if name = strings.TrimSpace(name); name != "" {
		list = append(list, name)
	}
	return list
}

// MappingRequest is what a model needs to write the SQL for one mapping.
// SourceRefs are the Dataform references the SQL must read from.
type MappingRequest struct {
	MappingAnalysis
	SourceRefs []string
}

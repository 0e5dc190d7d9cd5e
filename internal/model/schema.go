// Package model defines the core domain models used throughout the application.
package model

import "strings"

// DefaultSourceType is assumed when a column arrives without a declared type.
const DefaultSourceType = "STRING"

// Column is a single column of a source table as reported by the analyzer.
type Column struct {
	Name       string `json:"name"`
	SourceType string `json:"type"`
	Nullable   bool   `json:"nullable"`
}

// TableSchema describes one legacy table.
type TableSchema struct {
	Name        string   `json:"table_name"`
	Columns     []Column `json:"columns"`
	PrimaryKeys []string `json:"primary_keys"`
}

// Column returns the named column, matching case-insensitively.
func (t TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

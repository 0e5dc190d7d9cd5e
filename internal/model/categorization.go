package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultDomain is used for tables that received no field-level domain votes.
const DefaultDomain = "Reference & Time Data"

// DomainInfo describes one business domain discovered upstream.
type DomainInfo struct {
	Name        string `json:"domain_name"`
	Description string `json:"description"`
}

// FieldVote assigns one column of a table to a business domain.
type FieldVote struct {
	Field  string
	Domain string
}

// FieldVotes keeps the votes of one table in document order. Order matters
// because ties between domains are broken by first appearance.
type FieldVotes []FieldVote

// UnmarshalJSON decodes a {"field": "domain"} object without losing key order.
// Non-string values are ignored.
func (v *FieldVotes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read field votes: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("field votes must be a JSON object, got %v", tok)
	}

	votes := make(FieldVotes, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read field name: %w", err)
		}
		field, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read vote for %s: %w", field, err)
		}

		var domain string
		if err := json.Unmarshal(raw, &domain); err != nil {
			continue
		}
		votes = append(votes, FieldVote{Field: field, Domain: domain})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to close field votes: %w", err)
	}

	*v = votes
	return nil
}

// MarshalJSON writes the votes back as an ordered object.
func (v FieldVotes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, vote := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(vote.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(vote.Domain)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PrimaryDomain returns the most frequent domain among the votes. Ties go to
// the domain that was seen first. Empty votes yield "".
func (v FieldVotes) PrimaryDomain() string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, vote := range v {
		domain := strings.TrimSpace(vote.Domain)
		if domain == "" {
			continue
		}
		if _, seen := counts[domain]; !seen {
			order = append(order, domain)
		}
		counts[domain]++
	}

	best, bestCount := "", 0
	for _, domain := range order {
		if counts[domain] > bestCount {
			best, bestCount = domain, counts[domain]
		}
	}
	return best
}

// Categorization is the upstream domain discovery output.
type Categorization struct {
	Categorizations map[string]FieldVotes `json:"categorizations"`
	Domains         []DomainInfo          `json:"domains"`
}

// DecodeCategorization parses a categorization document.
func DecodeCategorization(data []byte) (Categorization, error) {
	var cat Categorization
	if len(bytes.TrimSpace(data)) == 0 {
		return cat, nil
	}
	if err := json.Unmarshal(data, &cat); err != nil {
		return Categorization{}, fmt.Errorf("failed to decode categorization: %w", err)
	}
	return cat, nil
}

// VotesFor returns the votes recorded for a table. An exact name match is
// preferred over a case-insensitive one; among several case-insensitive
// matches the lexically smallest key wins.
func (c Categorization) VotesFor(table string) FieldVotes {
	if votes, ok := c.Categorizations[table]; ok {
		return votes
	}
	names := make([]string, 0, len(c.Categorizations))
	for name := range c.Categorizations {
		if strings.EqualFold(name, table) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return c.Categorizations[names[0]]
}

// DomainFor derives the table's primary domain, falling back to defaultDomain.
func (c Categorization) DomainFor(table, defaultDomain string) string {
	if domain := c.VotesFor(table).PrimaryDomain(); domain != "" {
		return domain
	}
	return defaultDomain
}

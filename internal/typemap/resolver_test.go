package typemap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sybaseBuiltin = map[string]string{
	"INT":      "INT64",
	"VARCHAR":  "STRING",
	"MONEY":    "NUMERIC(19,4)",
	"DATETIME": "TIMESTAMP",
	"numeric":  "NUMERIC",
}

func TestBaseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"varchar(50)", "VARCHAR"},
		{"  numeric(10,2) ", "NUMERIC"},
		{"nvarchar[max]", "NVARCHAR"},
		{"unsigned int", "UNSIGNED INT"},
		{"INT", "INT"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseType(tt.in))
		})
	}
}

func TestResolver_Tiers(t *testing.T) {
	r := NewResolver(sybaseBuiltin, map[string]string{"varchar": "BYTES", "HIERARCHYID": "STRING"}, nil)

	tests := []struct {
		source   string
		want     string
		wantTier Tier
	}{
		{"varchar(255)", "BYTES", TierOverride},
		{"hierarchyid", "STRING", TierOverride},
		{"int", "INT64", TierBuiltin},
		{"NUMERIC(18,2)", "NUMERIC", TierBuiltin},
		{"money", "NUMERIC(19,4)", TierBuiltin},
		{"GEOGRAPHY", DefaultTarget, TierFallback},
		{"", DefaultTarget, TierFallback},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			res := r.ResolveDetailed(tt.source)
			assert.Equal(t, tt.want, res.Target)
			assert.Equal(t, tt.wantTier, res.Tier)
			assert.Equal(t, tt.want, r.Resolve(tt.source))
		})
	}

	entries := r.Ledger().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "GEOGRAPHY", entries[0].BaseType)
}

func TestResolver_NeverEmpty(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	for _, in := range []string{"", "   ", "(", "[x]", "weird type", "VARCHAR(10)"} {
		assert.NotEmpty(t, r.Resolve(in), in)
	}
}

func TestResolver_LedgerDedupUnderConcurrency(t *testing.T) {
	r := NewResolver(sybaseBuiltin, nil, nil)

	var wg sync.WaitGroup
	for table := 0; table < 10; table++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for col := 0; col < 50; col++ {
				assert.Equal(t, DefaultTarget, r.Resolve("HIERARCHYID"))
			}
		}()
	}
	wg.Wait()

	entries := r.Ledger().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.FallbackType{BaseType: "HIERARCHYID", TargetType: DefaultTarget, Occurrences: 500}, entries[0])
	assert.Equal(t, 1, r.Ledger().Len())
	assert.Equal(t, 500, r.Ledger().Count("hierarchyid"))
	assert.Zero(t, r.Ledger().Count("INT"))
}

func TestResolver_Table(t *testing.T) {
	r := NewResolver(sybaseBuiltin, map[string]string{"INT": "INTEGER", "XML": "JSON"}, nil)
	table := r.Table()

	assert.Equal(t, "INTEGER", table["INT"])
	assert.Equal(t, "JSON", table["XML"])
	assert.Equal(t, "STRING", table["VARCHAR"])
	assert.Equal(t, 2, r.OverrideCount())
}

func TestParseOverrides(t *testing.T) {
	input := `# operator overrides
SMALL_IDENTIFIER=INT64
hierarchyid = STRING

broken line
EMPTY=
`
	got, err := ParseOverrides(strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"SMALL_IDENTIFIER": "INT64",
		"HIERARCHYID":      "STRING",
	}, got)
}

type stubFetcher struct {
	err  error
	data string
	uris []string
}

func (s *stubFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	s.uris = append(s.uris, uri)
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.data), nil
}

func TestLoadOverrides(t *testing.T) {
	f := &stubFetcher{data: "XML=JSON\n"}
	got := LoadOverrides(context.Background(), f, "gs://bucket/types.txt", nil)
	assert.Equal(t, map[string]string{"XML": "JSON"}, got)
	assert.Equal(t, []string{"gs://bucket/types.txt"}, f.uris)

	failing := &stubFetcher{err: errors.New("permission denied")}
	assert.Empty(t, LoadOverrides(context.Background(), failing, "gs://bucket/types.txt", nil))

	none := &stubFetcher{}
	assert.Empty(t, LoadOverrides(context.Background(), none, "", nil))
	assert.Empty(t, none.uris)
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, "sybase", []model.FallbackType{
		{BaseType: "XML", TargetType: "STRING"},
		{BaseType: "HIERARCHYID"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Type Mapping Report\n\n"))
	assert.Contains(t, out, "Sybase base types")
	assert.Less(t, strings.Index(out, "HIERARCHYID -> STRING"), strings.Index(out, "XML -> STRING"))

	buf.Reset()
	require.NoError(t, WriteReport(&buf, "sybase", nil))
	assert.Empty(t, buf.String())
}

func TestRenderHelperModule(t *testing.T) {
	js := RenderHelperModule("sybase", map[string]string{"VARCHAR": "STRING", "INT": "INT64", "ODD'TYPE": "STRING"})

	assert.Contains(t, js, "// Sybase to BigQuery type mappings")
	assert.Contains(t, js, "function mapSybaseType(sourceType) {")
	assert.Contains(t, js, "    'INT': 'INT64',\n    'ODD\\'TYPE': 'STRING',\n    'VARCHAR': 'STRING'\n")
	assert.Contains(t, js, "return mappings[base] || 'STRING';")
	assert.Contains(t, js, "module.exports = { mapSybaseType };")
}

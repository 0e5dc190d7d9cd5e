package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldVotes_UnmarshalKeepsOrder(t *testing.T) {
	var votes FieldVotes
	err := json.Unmarshal([]byte(`{"z_col": "Sales", "a_col": "Finance", "m_col": 42, "b_col": "Sales"}`), &votes)
	require.NoError(t, err)

	require.Len(t, votes, 3)
	assert.Equal(t, FieldVote{Field: "z_col", Domain: "Sales"}, votes[0])
	assert.Equal(t, FieldVote{Field: "a_col", Domain: "Finance"}, votes[1])
	assert.Equal(t, FieldVote{Field: "b_col", Domain: "Sales"}, votes[2])
}

func TestFieldVotes_UnmarshalRejectsArray(t *testing.T) {
	var votes FieldVotes
	err := json.Unmarshal([]byte(`["a", "b"]`), &votes)
	assert.Error(t, err)
}

func TestFieldVotes_PrimaryDomain(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		votes FieldVotes
	}{
		{
			name: "clear majority",
			votes: FieldVotes{
				{Field: "a", Domain: "Finance"},
				{Field: "b", Domain: "Sales"},
				{Field: "c", Domain: "Sales"},
			},
			want: "Sales",
		},
		{
			name: "tie goes to first seen",
			votes: FieldVotes{
				{Field: "a", Domain: "Gaming"},
				{Field: "b", Domain: "Hotel"},
				{Field: "c", Domain: "Hotel"},
				{Field: "d", Domain: "Gaming"},
			},
			want: "Gaming",
		},
		{
			name:  "no votes",
			votes: nil,
			want:  "",
		},
		{
			name: "blank domains ignored",
			votes: FieldVotes{
				{Field: "a", Domain: " "},
				{Field: "b", Domain: "Hotel"},
			},
			want: "Hotel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.votes.PrimaryDomain())
		})
	}
}

func TestCategorization_DomainFor(t *testing.T) {
	cat, err := DecodeCategorization([]byte(`{
		"domains": [{"domain_name": "Customer & Loyalty Management", "description": "patrons"}],
		"categorizations": {
			"D_PATRON": {"patron_id": "Customer & Loyalty Management", "site_code": "Property Operations", "tier": "Customer & Loyalty Management"}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Customer & Loyalty Management", cat.DomainFor("D_PATRON", DefaultDomain))
	assert.Equal(t, "Customer & Loyalty Management", cat.DomainFor("d_patron", DefaultDomain))
	assert.Equal(t, DefaultDomain, cat.DomainFor("D_UNKNOWN", DefaultDomain))
	require.Len(t, cat.Domains, 1)
	assert.Equal(t, "patrons", cat.Domains[0].Description)
}

func TestCategorization_VotesForCaseVariants(t *testing.T) {
	cat := Categorization{Categorizations: map[string]FieldVotes{
		"d_site": {{Field: "a", Domain: "Property Operations"}},
		"D_Site": {{Field: "a", Domain: "Finance"}},
		"D_SITE": {{Field: "a", Domain: "Gaming Activity & Performance"}},
	}}

	assert.Equal(t, "Finance", cat.VotesFor("D_Site").PrimaryDomain(), "exact match wins")
	for i := 0; i < 50; i++ {
		assert.Equal(t, "Gaming Activity & Performance", cat.DomainFor("d_SITE", DefaultDomain))
	}
	assert.Nil(t, cat.VotesFor("D_SITES"))
}

func TestDecodeCategorization_Empty(t *testing.T) {
	cat, err := DecodeCategorization(nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", cat.DomainFor("ANY", "fallback"))
}

func TestFieldVotes_MarshalRoundTripOrder(t *testing.T) {
	votes := FieldVotes{{Field: "b", Domain: "X"}, {Field: "a", Domain: "Y"}}
	data, err := json.Marshal(votes)
	require.NoError(t, err)
	assert.Equal(t, `{"b":"X","a":"Y"}`, string(data))
}

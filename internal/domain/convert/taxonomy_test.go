package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTaxonomy(t *testing.T) *Taxonomy {
	t.Helper()
	tx, err := NewTaxonomy(DefaultTaxonomyEntries(), DefaultCategory)
	require.NoError(t, err)
	return tx
}

func TestTaxonomy_Resolve(t *testing.T) {
	tx := newTestTaxonomy(t)

	tests := []struct {
		input    string
		category string
		rule     MatchRule
	}{
		{"Mugs", "Home > Kitchen > Mugs", MatchRuleExact},
		{"MUGS", "Home > Kitchen > Mugs", MatchRuleCaseInsensitive},
		{"t-shirts", "Apparel > Tops > T-Shirts", MatchRuleCaseInsensitive},
		{"Enamel Camping Mug", "Home > Kitchen > Mugs", MatchRuleKeyword},
		{"Graphic Tee Shirt", "Apparel > Tops > Shirts", MatchRuleKeyword},
		{"Oversized T-Shirt", "Apparel > Tops > T-Shirts", MatchRuleKeyword},
		{"Gift Card", DefaultCategory, MatchRuleDefault},
		{"", DefaultCategory, MatchRuleDefault},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := tx.Resolve(tt.input)
			assert.Equal(t, tt.category, res.Category)
			assert.Equal(t, tt.rule, res.Rule)
		})
	}
}

func TestTaxonomy_UnicodeFolding(t *testing.T) {
	tx, err := NewTaxonomy([]TaxonomyEntry{{Name: "Straße", Category: "Streets"}}, "Other")
	require.NoError(t, err)

	res := tx.Resolve("STRASSE")
	assert.Equal(t, "Streets", res.Category)
	assert.Equal(t, MatchRuleCaseInsensitive, res.Rule)
}

func TestTaxonomy_DeterministicAndIdempotent(t *testing.T) {
	inputs := []string{"Canvas Tote Bag", "Baseball Cap", "ebook bundle", "Widget", "hoodies"}
	first := newTestTaxonomy(t)
	second := newTestTaxonomy(t)
	for _, in := range inputs {
		a := first.Resolve(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, a, first.Resolve(in))
			assert.Equal(t, a, second.Resolve(in))
		}
		// resolving the resolved category name again is stable
		assert.Equal(t, first.Resolve(a.Category), second.Resolve(a.Category))
	}
}

func TestTaxonomy_KeywordTieBreaksOnTableOrder(t *testing.T) {
	tx, err := NewTaxonomy([]TaxonomyEntry{
		{Name: "First", Category: "A", Keywords: []string{"blue"}},
		{Name: "Second", Category: "B", Keywords: []string{"navy"}},
	}, "Z")
	require.NoError(t, err)

	res := tx.Resolve("navy blue scarf")
	assert.Equal(t, "A", res.Category)
	assert.Equal(t, "blue", res.Matched)
}

func TestNewTaxonomy_Errors(t *testing.T) {
	_, err := NewTaxonomy(nil, "")
	assert.ErrorIs(t, err, ErrTaxonomyNoDefault)

	_, err = NewTaxonomy([]TaxonomyEntry{{Name: " ", Category: "x"}}, "d")
	assert.ErrorIs(t, err, ErrTaxonomyEmptyName)

	_, err = NewTaxonomy([]TaxonomyEntry{{Name: "A", Category: "x"}, {Name: "A", Category: "y"}}, "d")
	assert.ErrorIs(t, err, ErrTaxonomyDuplicateEntry)
}

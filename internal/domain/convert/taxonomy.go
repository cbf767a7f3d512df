package convert

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

var (
	ErrTaxonomyEmptyName      = errors.New("convert: taxonomy entry name is required")
	ErrTaxonomyDuplicateEntry = errors.New("convert: duplicate taxonomy entry")
	ErrTaxonomyNoDefault      = errors.New("convert: taxonomy default category is required")
)

// MatchRule names the step of the fallback chain that produced a category
type MatchRule string

const (
	MatchRuleExact           MatchRule = "exact"
	MatchRuleCaseInsensitive MatchRule = "case_insensitive"
	MatchRuleKeyword         MatchRule = "keyword"
	MatchRuleDefault         MatchRule = "default"
)

// TaxonomyEntry maps a product type name to a platform category
type TaxonomyEntry struct {
	// Name is the product type as written in the canonical catalog
	Name string `mapstructure:"name" yaml:"name"`
	// Category is the platform category path or name
	Category string `mapstructure:"category" yaml:"category"`
	// Keywords are extra substrings that select this entry
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
}

// Resolution is the outcome of a taxonomy lookup
type Resolution struct {
	Input    string
	Category string
	Rule     MatchRule
	// Matched is the entry name or keyword that matched, empty for default
	Matched string
}

type keywordCandidate struct {
	folded   string
	original string
	category string
}

// Taxonomy resolves product types through exact, case-insensitive, keyword
// and default rules, in that order. It is immutable after construction and
// safe for concurrent use.
type Taxonomy struct {
	exact           map[string]string
	folded          map[string]TaxonomyEntry
	keywords        []keywordCandidate
	defaultCategory string
}

// NewTaxonomy validates the table and precomputes folded keys
func NewTaxonomy(entries []TaxonomyEntry, defaultCategory string) (*Taxonomy, error) {
	if strings.TrimSpace(defaultCategory) == "" {
		return nil, ErrTaxonomyNoDefault
	}
	t := &Taxonomy{
		exact:           make(map[string]string, len(entries)),
		folded:          make(map[string]TaxonomyEntry, len(entries)),
		defaultCategory: defaultCategory,
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" || strings.TrimSpace(e.Category) == "" {
			return nil, fmt.Errorf("%w: %+v", ErrTaxonomyEmptyName, e)
		}
		if _, dup := t.exact[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrTaxonomyDuplicateEntry, name)
		}
		t.exact[name] = e.Category

		key := fold(name)
		if _, dup := t.folded[key]; !dup {
			t.folded[key] = e
		}
		t.keywords = append(t.keywords, keywordCandidate{folded: key, original: name, category: e.Category})
		for _, kw := range e.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				t.keywords = append(t.keywords, keywordCandidate{folded: fold(kw), original: kw, category: e.Category})
			}
		}
	}
	return t, nil
}

// DefaultCategory returns the category used when nothing matches
func (t *Taxonomy) DefaultCategory() string {
	return t.defaultCategory
}

// Resolve runs the fallback chain. The longest matching keyword wins and ties
// go to the earlier table entry.
func (t *Taxonomy) Resolve(name string) Resolution {
	trimmed := strings.TrimSpace(name)
	res := Resolution{Input: name}

	if trimmed == "" {
		res.Category, res.Rule = t.defaultCategory, MatchRuleDefault
		return res
	}
	if c, ok := t.exact[trimmed]; ok {
		res.Category, res.Rule, res.Matched = c, MatchRuleExact, trimmed
		return res
	}

	key := fold(trimmed)
	if e, ok := t.folded[key]; ok {
		res.Category, res.Rule, res.Matched = e.Category, MatchRuleCaseInsensitive, e.Name
		return res
	}

	var best *keywordCandidate
	for i := range t.keywords {
		kc := &t.keywords[i]
		if !strings.Contains(key, kc.folded) {
			continue
		}
		if best == nil || len(kc.folded) > len(best.folded) {
			best = kc
		}
	}
	if best != nil {
		res.Category, res.Rule, res.Matched = best.category, MatchRuleKeyword, best.original
		return res
	}

	res.Category, res.Rule = t.defaultCategory, MatchRuleDefault
	return res
}

// fold applies Unicode case folding; a Caser is stateful so one is made per call
func fold(s string) string {
	return cases.Fold().String(s)
}

// DefaultTaxonomyEntries is the built-in table used when configuration does
// not provide one.
func DefaultTaxonomyEntries() []TaxonomyEntry {
	return []TaxonomyEntry{
		{Name: "T-Shirts", Category: "Apparel > Tops > T-Shirts", Keywords: []string{"tee", "t-shirt"}},
		{Name: "Shirts", Category: "Apparel > Tops > Shirts", Keywords: []string{"shirt", "blouse"}},
		{Name: "Hoodies", Category: "Apparel > Tops > Hoodies", Keywords: []string{"hoodie", "sweatshirt"}},
		{Name: "Pants", Category: "Apparel > Bottoms > Pants", Keywords: []string{"trouser", "jeans", "pant"}},
		{Name: "Hats", Category: "Apparel > Accessories > Hats", Keywords: []string{"cap", "beanie", "hat"}},
		{Name: "Bags", Category: "Apparel > Accessories > Bags", Keywords: []string{"tote", "backpack", "bag"}},
		{Name: "Mugs", Category: "Home > Kitchen > Mugs", Keywords: []string{"mug", "cup"}},
		{Name: "Posters", Category: "Home > Decor > Posters", Keywords: []string{"print", "poster"}},
		{Name: "Stickers", Category: "Stationery > Stickers", Keywords: []string{"sticker", "decal"}},
		{Name: "Digital Downloads", Category: "Digital > Downloads", Keywords: []string{"download", "ebook", "digital"}},
	}
}

// DefaultCategory is the fallback category of the built-in table
const DefaultCategory = "Uncategorized"

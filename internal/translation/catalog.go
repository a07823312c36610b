package translation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"lingorelay/pkg/types"
)

// DefaultModelTemplate names one Helsinki-NLP opus-mt model per direction.
const DefaultModelTemplate = "Helsinki-NLP/opus-mt-{src}-{tgt}"

// ModelEntry lists both directions of one traveler language.
type ModelEntry struct {
	Language      types.LanguageCode `json:"language"`
	ToReference   string             `json:"to_reference"`
	FromReference string             `json:"from_reference"`
}

// Catalog maps every supported pair to the model that serves it.
// FUNCTIONAL DISCOVERY: only (L, reference) and (reference, L) exist; there is no
// traveler-to-traveler model
type Catalog struct {
	reference types.LanguageCode
	languages []types.LanguageCode
	models    map[types.LanguagePair]string
}

// NewCatalog builds the model table. overrides is keyed by "src-tgt" and wins over the
// template. An empty template requires an override for every pair.
func NewCatalog(reference types.LanguageCode, languages []types.LanguageCode, template string, overrides map[string]string) (*Catalog, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("%w: no traveler languages", ErrMissingModel)
	}
	if lo.Contains(languages, reference) {
		return nil, fmt.Errorf("reference language %q cannot be a traveler language", reference)
	}

	c := &Catalog{
		reference: reference,
		languages: lo.Uniq(languages),
		models:    make(map[types.LanguagePair]string, 2*len(languages)),
	}

	for _, lang := range c.languages {
		for _, pair := range []types.LanguagePair{
			{Source: lang, Target: reference},
			{Source: reference, Target: lang},
		} {
			model := overrides[string(pair.Source)+"-"+string(pair.Target)]
			if model == "" && template != "" {
				model = strings.NewReplacer("{src}", string(pair.Source), "{tgt}", string(pair.Target)).Replace(template)
			}
			if model == "" {
				return nil, fmt.Errorf("%w: %s", ErrMissingModel, pair)
			}
			c.models[pair] = model
		}
	}

	return c, nil
}

func (c *Catalog) Reference() types.LanguageCode { return c.reference }

// Languages returns the traveler languages in configuration order.
func (c *Catalog) Languages() []types.LanguageCode {
	return slices.Clone(c.languages)
}

// IsTravelerLanguage reports whether lang is a configured traveler language.
func (c *Catalog) IsTravelerLanguage(lang types.LanguageCode) bool {
	return lo.Contains(c.languages, lang)
}

// Supported returns the traveler languages followed by the reference language.
func (c *Catalog) Supported() []types.LanguageCode {
	return append(slices.Clone(c.languages), c.reference)
}

// IsSupported reports whether lang may be declared by a traveler. A reference-language
// traveler is relayed as a passthrough.
func (c *Catalog) IsSupported(lang types.LanguageCode) bool {
	return lang == c.reference || c.IsTravelerLanguage(lang)
}

// Model returns the model serving pair.
func (c *Catalog) Model(pair types.LanguagePair) (string, bool) {
	m, ok := c.models[pair]
	return m, ok
}

// Entries lists the table one row per traveler language.
func (c *Catalog) Entries() []ModelEntry {
	return lo.Map(c.languages, func(lang types.LanguageCode, _ int) ModelEntry {
		return ModelEntry{
			Language:      lang,
			ToReference:   c.models[types.LanguagePair{Source: lang, Target: c.reference}],
			FromReference: c.models[types.LanguagePair{Source: c.reference, Target: lang}],
		}
	})
}

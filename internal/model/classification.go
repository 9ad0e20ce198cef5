package model

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Neutral verdict. A classification in the neutral category always carries
// these exact values regardless of what the model returned.
const (
	NeutralCategory  = "NO INFRACCIÓN"
	NeutralRationale = "La expresión no constituye una infracción penal en este contexto."
	NeutralStatute   = "No aplica"
	NeutralPenalty   = "Sin sanción"
)

// MaxEvidence caps the evidence attached to a single analysis.
const MaxEvidence = 3

// Classification is the verdict produced for one input text. JSON keys match
// the wire format the model is instructed to emit and the HTTP API returns.
type Classification struct {
	OriginalText string `json:"Frase_Original"`
	Category     string `json:"Categoria_Legal"`
	Statute      string `json:"Articulo_CR"`
	Penalty      string `json:"Penalidad_Estimada"`
	Rationale    string `json:"Detalles_Deteccion"`
}

// IsNeutral reports whether the classification is the no-infraction verdict.
func (c *Classification) IsNeutral() bool {
	return IsNeutral(c.Category)
}

// Neutralize overwrites the verdict fields with the fixed neutral values.
func (c *Classification) Neutralize() {
	c.Category = NeutralCategory
	c.Statute = NeutralStatute
	c.Penalty = NeutralPenalty
	c.Rationale = NeutralRationale
}

// Complete reports whether all four verdict fields are non-empty.
func (c *Classification) Complete() bool {
	for _, v := range []string{c.Category, c.Statute, c.Penalty, c.Rationale} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// IsNeutral reports whether category names the neutral sentinel. The
// comparison ignores case, accents, and surrounding or repeated whitespace,
// so "no infraccion" and "NO  INFRACCIÓN" both match.
func IsNeutral(category string) bool {
	return FoldCategory(category) == FoldCategory(NeutralCategory)
}

// FoldCategory returns the canonical comparison form of a category label:
// accents removed, upper-cased with Spanish rules, whitespace collapsed.
func FoldCategory(category string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, category)
	if err != nil {
		stripped = category
	}
	upper := cases.Upper(language.Spanish).String(stripped)
	return strings.Join(strings.Fields(upper), " ")
}

// EvidenceItem is an opaque document returned by the law search service.
type EvidenceItem = json.RawMessage

// Analysis is the response assembled for one request: the classification plus
// up to MaxEvidence supporting documents.
type Analysis struct {
	Classification
	Evidence []EvidenceItem `json:"Evidencia_Crawler"`
}

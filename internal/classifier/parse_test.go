package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/model"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json_fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare_fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding_space", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
		{"leading_only", "```json\n{\"a\":1}", `{"a":1}`},
		{"trailing_only", "{\"a\":1}\n```", `{"a":1}`},
		{"single_line_fence", "```{\"a\":1}```", `{"a":1}`},
		{"single_line_json_fence", "```json{\"a\":1}```", `{"a":1}`},
		{"single_line_json_fence_space", "```json {\"a\":1} ```", `{"a":1}`},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

const amenaza = `{
  "Frase_Original": "lo que el modelo copió",
  "Categoria_Legal": "AMENAZA",
  "Articulo_CR": "C.P. Art 188",
  "Penalidad_Estimada": "30 a 90 días multa",
  "Detalles_Deteccion": "Anuncio de un mal grave e injusto."
}`

func TestParse_Success(t *testing.T) {
	t.Parallel()

	c, err := Parse("```json\n"+amenaza+"\n```", "te voy a matar")
	require.NoError(t, err)
	assert.Equal(t, "AMENAZA", c.Category)
	assert.Equal(t, "C.P. Art 188", c.Statute)
	assert.Equal(t, "30 a 90 días multa", c.Penalty)
	assert.Equal(t, "Anuncio de un mal grave e injusto.", c.Rationale)
	assert.Equal(t, "te voy a matar", c.OriginalText, "original text is always the input")
}

func TestParse_NeutralIsForced(t *testing.T) {
	t.Parallel()

	raw := `{"Categoria_Legal": "No Infraccion", "Articulo_CR": "C.P. Art 145", "Penalidad_Estimada": "10 días multa", "Detalles_Deteccion": "saludo"}`
	c, err := Parse(raw, "buenos días")
	require.NoError(t, err)
	assert.Equal(t, model.NeutralCategory, c.Category)
	assert.Equal(t, model.NeutralRationale, c.Rationale)
	assert.Equal(t, model.NeutralStatute, c.Statute)
	assert.Equal(t, model.NeutralPenalty, c.Penalty)
}

func TestParse_NeutralWithMissingFields(t *testing.T) {
	t.Parallel()

	c, err := Parse(`{"Categoria_Legal": "NO INFRACCIÓN"}`, "hola")
	require.NoError(t, err)
	assert.True(t, c.Complete())
	assert.Equal(t, model.NeutralRationale, c.Rationale)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{"empty", "```json\n```", "empty model answer"},
		{"prose", "La frase constituye una amenaza.", "decode model answer"},
		{"truncated", `{"Categoria_Legal": "AMEN`, "decode model answer"},
		{"array", `[1,2]`, "validate model answer"},
		{"missing_category", `{"Articulo_CR": "C.P. Art 188"}`, "validate model answer"},
		{"blank_category", `{"Categoria_Legal": "  "}`, "validate model answer"},
		{"numeric_field", `{"Categoria_Legal": "CALUMNIA", "Articulo_CR": 147}`, "validate model answer"},
		{"missing_penalty", `{"Categoria_Legal": "CALUMNIA", "Articulo_CR": "C.P. Art 147", "Detalles_Deteccion": "acusación falsa"}`, "missing Penalidad_Estimada"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := Parse(tt.raw, "texto")
			require.Error(t, err)
			assert.Nil(t, c)
			assert.Equal(t, apperr.KindMalformedModelOutput, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

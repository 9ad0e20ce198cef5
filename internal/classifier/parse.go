package classifier

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/model"
)

// recordSchema is the minimum shape a model answer must have before it is
// decoded. Completeness of non-neutral verdicts is checked after decoding.
const recordSchema = `{
  "type": "object",
  "required": ["Categoria_Legal"],
  "properties": {
    "Frase_Original":     {"type": "string"},
    "Categoria_Legal":    {"type": "string", "pattern": "\\S"},
    "Articulo_CR":        {"type": "string"},
    "Penalidad_Estimada": {"type": "string"},
    "Detalles_Deteccion": {"type": "string"}
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", strings.NewReader(recordSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("record.json")
}

// Normalize strips one leading markdown code fence (``` or ```json, on its own
// line or glued to the payload) and one trailing ``` marker from a model answer.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
			s = strings.TrimLeftFunc(s, func(r rune) bool {
				return unicode.IsLetter(r) || unicode.IsDigit(r)
			})
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Parse turns a raw model answer into a classification of input. The
// returned record is either complete or an error of kind
// MalformedModelOutput. Neutral verdicts get the fixed neutral values.
func Parse(raw, input string) (*model.Classification, error) {
	const op = "classifier: parse"

	normalized := Normalize(raw)
	if normalized == "" {
		return nil, apperr.Newf(apperr.KindMalformedModelOutput, op, "empty model answer")
	}

	var doc any
	if err := json.Unmarshal([]byte(normalized), &doc); err != nil {
		return nil, apperr.New(apperr.KindMalformedModelOutput, op, eris.Wrap(err, "decode model answer"))
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, apperr.New(apperr.KindMalformedModelOutput, op, eris.Wrap(err, "validate model answer"))
	}

	var c model.Classification
	if err := json.Unmarshal([]byte(normalized), &c); err != nil {
		return nil, apperr.New(apperr.KindMalformedModelOutput, op, eris.Wrap(err, "decode classification"))
	}

	c.OriginalText = input
	c.Category = strings.TrimSpace(c.Category)
	if c.IsNeutral() {
		c.Neutralize()
		return &c, nil
	}
	if !c.Complete() {
		return nil, apperr.Newf(apperr.KindMalformedModelOutput, op,
			"category %q is missing %s", c.Category, strings.Join(missingFields(&c), ", "))
	}
	return &c, nil
}

func missingFields(c *model.Classification) []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"Articulo_CR", c.Statute},
		{"Penalidad_Estimada", c.Penalty},
		{"Detalles_Deteccion", c.Rationale},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

package persona

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// personaSchema is the structural contract for persona files. Name, character
// and speech_style carry the system prompt; a persona without them is not
// usable downstream, so they are required. Everything else has defaults.
const personaSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["name", "character", "speech_style"],
	"properties": {
		"name":         {"type": "string", "minLength": 1},
		"age":          {"type": "integer", "minimum": 0},
		"origin":       {"type": "string"},
		"character":    {"type": "string", "minLength": 1},
		"speech_style": {"type": "string", "minLength": 1}
	}
}`

var compiledSchema = jsonschema.MustCompileString("persona.schema.json", personaSchema)

// Load reads and validates the persona file at path. On any failure it logs
// a warning and returns the default persona — a broken persona file must not
// abort startup.
func Load(path string) Persona {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("persona: file not readable, using default persona", "path", path, "err", err)
		return Default()
	}

	p, err := Parse(data)
	if err != nil {
		slog.Warn("persona: invalid persona file, using default persona", "path", path, "err", err)
		return Default()
	}

	slog.Info("persona loaded", "name", p.Name, "origin", p.Origin)
	return p
}

// Parse decodes and validates a persona document. Missing optional fields
// (age, origin) are filled from the default persona; missing required fields
// fail schema validation.
func Parse(data []byte) (Persona, error) {
	// Decode generically first so the document can be checked against the
	// schema before any field is trusted.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Persona{}, fmt.Errorf("persona parse: %w", err)
	}

	// The schema validator expects JSON-typed values (float64 numbers,
	// map[string]any objects); round-trip through encoding/json to normalise
	// whatever the YAML decoder produced.
	normalised, err := normaliseForSchema(doc)
	if err != nil {
		return Persona{}, fmt.Errorf("persona parse: %w", err)
	}
	if err := compiledSchema.Validate(normalised); err != nil {
		return Persona{}, fmt.Errorf("persona schema: %w", err)
	}

	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("persona decode: %w", err)
	}
	if p.Age == 0 {
		p.Age = Default().Age
	}
	if p.Origin == "" {
		p.Origin = Default().Origin
	}
	return p, nil
}

func normaliseForSchema(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var normalised any
	if err := json.Unmarshal(raw, &normalised); err != nil {
		return nil, err
	}
	return normalised, nil
}

// Package persona loads the bot's externally configurable personality.
//
// The persona file is a small structured record (YAML or JSON — YAML is a
// superset, so both decode the same way) describing who the bot pretends to
// be. The file is optional: any read, decode, or validation failure falls
// back to the built-in default persona with a logged warning, never an error.
package persona

// Persona describes the character the bot adopts in every conversation.
// Immutable once loaded; rendered exactly once per conversation into the
// system turn that pins the conversation's tone.
type Persona struct {
	// Name is the name the bot introduces itself with.
	Name string `yaml:"name" json:"name"`

	// Age in years. Advisory flavour only.
	Age int `yaml:"age,omitempty" json:"age,omitempty"`

	// Origin is where the character is from (e.g. a country).
	Origin string `yaml:"origin,omitempty" json:"origin,omitempty"`

	// Character is a free-text description of the personality traits.
	Character string `yaml:"character" json:"character"`

	// SpeechStyle describes how the character talks.
	SpeechStyle string `yaml:"speech_style" json:"speech_style"`
}

// Default returns the built-in persona used when no valid persona file is
// available.
func Default() Persona {
	return Persona{
		Name:      "KekoAI",
		Age:       22,
		Origin:    "Paraguay",
		Character: "amigable, optimista, empático y divertido",
		SpeechStyle: "una persona joven, cercana y positiva. Usa emojis, " +
			"expresiones cotidianas y siempre busca animar a quien habla con él.",
	}
}

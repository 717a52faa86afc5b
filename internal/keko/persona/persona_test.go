package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Persona
		wantErr bool
	}{
		{
			name: "valid json",
			data: `{"name": "Luna", "age": 30, "origin": "Chile", "character": "seria", "speech_style": "formal"}`,
			want: Persona{Name: "Luna", Age: 30, Origin: "Chile", Character: "seria", SpeechStyle: "formal"},
		},
		{
			name: "valid yaml",
			data: "name: Luna\ncharacter: seria\nspeech_style: formal\n",
			want: Persona{Name: "Luna", Age: Default().Age, Origin: Default().Origin, Character: "seria", SpeechStyle: "formal"},
		},
		{
			name: "missing optional fields get defaults",
			data: `{"name": "Max", "character": "tranquilo", "speech_style": "pausado"}`,
			want: Persona{Name: "Max", Age: Default().Age, Origin: Default().Origin, Character: "tranquilo", SpeechStyle: "pausado"},
		},
		{
			name:    "missing required field",
			data:    `{"name": "Luna", "age": 30}`,
			wantErr: true,
		},
		{
			name:    "empty required field",
			data:    `{"name": "", "character": "x", "speech_style": "y"}`,
			wantErr: true,
		},
		{
			name:    "wrong type for age",
			data:    `{"name": "Luna", "age": "old", "character": "x", "speech_style": "y"}`,
			wantErr: true,
		},
		{
			name:    "not a document",
			data:    `[1, 2, 3]`,
			wantErr: true,
		},
		{
			name:    "malformed",
			data:    `{"name": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "nope.json"))
	if got != Default() {
		t.Errorf("expected default persona, got %+v", got)
	}
}

func TestLoad_MalformedFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	if err := os.WriteFile(path, []byte("{{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := Load(path)
	if got != Default() {
		t.Errorf("expected default persona, got %+v", got)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	data := `{"name": "Rita", "age": 40, "origin": "Uruguay", "character": "directa", "speech_style": "seca"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	got := Load(path)
	if got.Name != "Rita" || got.Age != 40 || got.Origin != "Uruguay" {
		t.Errorf("unexpected persona: %+v", got)
	}
}

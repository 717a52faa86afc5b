package prompt

import (
	"strings"
	"testing"

	"github.com/keko-ai/keko/internal/keko/conversation"
	"github.com/keko-ai/keko/internal/keko/persona"
)

func TestSystemTurn(t *testing.T) {
	p := persona.Persona{
		Name:        "Luna",
		Character:   "seria y directa",
		SpeechStyle: "formal, sin emojis",
	}

	turn := SystemTurn(p)
	if turn.Role != conversation.RoleSystem {
		t.Fatalf("expected system role, got %q", turn.Role)
	}
	for _, want := range []string{"Luna", "seria y directa", "formal, sin emojis", "No digas que eres un bot"} {
		if !strings.Contains(turn.Content, want) {
			t.Errorf("system turn missing %q: %s", want, turn.Content)
		}
	}
}

func TestSystemTurn_Deterministic(t *testing.T) {
	p := persona.Default()
	if SystemTurn(p) != SystemTurn(p) {
		t.Error("system turn must be deterministic in the persona")
	}
}

func TestBuildRequest(t *testing.T) {
	store := conversation.NewStore(conversation.StoreConfig{})
	store.GetOrCreate("@alice:test", SystemTurn(persona.Default()))
	for i := 0; i < 20; i++ {
		store.AppendUser("@alice:test", "pregunta")
		store.AppendAssistant("@alice:test", "respuesta")
	}

	turns := BuildRequest(store, "@alice:test", 10)
	if len(turns) != 11 {
		t.Fatalf("expected 11 turns (system + 10), got %d", len(turns))
	}
	if turns[0].Role != conversation.RoleSystem {
		t.Errorf("element 0 must be the system turn, got %q", turns[0].Role)
	}
	if turns[len(turns)-1].Role != conversation.RoleAssistant {
		t.Errorf("expected trailing assistant turn, got %q", turns[len(turns)-1].Role)
	}
}

// Package prompt renders the persona into the fixed system instruction and
// assembles the windowed message list sent to the completion backend.
package prompt

import (
	"fmt"

	"github.com/keko-ai/keko/internal/keko/conversation"
	"github.com/keko-ai/keko/internal/keko/persona"
)

// SystemTurn formats the persona into the instruction turn that becomes
// element 0 of a new conversation's history. The text is deterministic in
// the persona fields and fixed for the conversation's lifetime, even if the
// persona is later reloaded.
func SystemTurn(p persona.Persona) conversation.Turn {
	content := fmt.Sprintf(
		"Eres %s, una persona %s. Hablas como: %s. "+
			"Responde de forma amigable y cercana. No digas que eres un bot. "+
			"Tu conversación es sobre un tema continuo, así que usa el contexto que te proporciono. "+
			"Manten la conversación animada.",
		p.Name, p.Character, p.SpeechStyle,
	)
	return conversation.Turn{Role: conversation.RoleSystem, Content: content}
}

// BuildRequest returns the ordered turn list for a completion call: the
// identity's system turn plus its trailing window of windowSize non-system
// turns. This bounds the token cost of every call regardless of how long
// the conversation has run.
func BuildRequest(store *conversation.Store, identity string, windowSize int) []conversation.Turn {
	return store.Window(identity, windowSize)
}

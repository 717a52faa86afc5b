// Package pipeline orchestrates the per-event processing chain: filter the
// inbound message, update the conversation history, obtain a completion,
// synthesize speech, and deliver the voice note — with exactly one text
// apology on any failure past the history update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/keko-ai/keko/internal/keko/conversation"
	"github.com/keko-ai/keko/internal/keko/llm"
	"github.com/keko-ai/keko/internal/keko/persona"
	"github.com/keko-ai/keko/internal/keko/prompt"
	"github.com/keko-ai/keko/internal/keko/speech"
)

// Apology is the fixed text sent to the user when the pipeline fails after
// their message was recorded. It is sent at most once per failed event.
const Apology = "¡Ups! Algo falló en mi cerebro de IA. Verifica tu API Key o intenta más tarde. 🤕"

// Inbound is one message extracted from a messaging-network notification.
type Inbound struct {
	// Sender is the conversation identity of the remote party.
	Sender string
	// Text is the plain-text content; empty for media-only messages.
	Text string
	// FromSelf marks messages authored by the bot's own account.
	FromSelf bool
}

// Notification is a batch of inbound messages delivered together by the
// messaging client. Only the first message of a batch is processed.
type Notification struct {
	Messages []Inbound
}

// Completer produces a reply for an ordered turn list. A reply may be the
// fixed fallback, signalled with llm.ErrNoCandidate alongside usable text.
type Completer interface {
	Complete(ctx context.Context, turns []conversation.Turn) (string, error)
}

// Synthesizer converts reply text to playback-ready audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Messenger delivers replies back through the messaging network.
type Messenger interface {
	// SendVoiceNote sends the audio file at path to identity as a voice note.
	SendVoiceNote(ctx context.Context, identity, path, mimeType string) error
	// SendText sends a plain text message to identity.
	SendText(ctx context.Context, identity, text string) error
}

// Config holds pipeline configuration.
type Config struct {
	// Persona is rendered into the system turn of every new conversation.
	Persona persona.Persona
	// WindowSize is the number of trailing non-system turns sent per
	// completion call. Defaults to conversation.DefaultWindow.
	WindowSize int
	// Voice is the synthesis voice identity. Defaults to speech.DefaultVoice.
	Voice string
	// TempDir is where transient audio artifacts are written. Defaults to
	// the system temp directory.
	TempDir string
	// DeliveryTimeout bounds each outbound send. Defaults to 30s.
	DeliveryTimeout time.Duration
	// QueueSize bounds each identity's pending-message queue. Defaults to 16.
	QueueSize int
	// IdleTTL is how long an identity's worker lingers without traffic
	// before retiring. Defaults to 5 minutes.
	IdleTTL time.Duration
}

// Pipeline processes inbound notifications. Messages from the same identity
// are handled strictly in arrival order; different identities proceed in
// parallel.
type Pipeline struct {
	config     Config
	store      *conversation.Store
	completer  Completer
	synth      Synthesizer
	messenger  Messenger
	dispatcher *dispatcher
}

// New creates a Pipeline over the given collaborators.
func New(cfg Config, store *conversation.Store, completer Completer, synth Synthesizer, messenger Messenger) *Pipeline {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = conversation.DefaultWindow
	}
	if cfg.Voice == "" {
		cfg.Voice = speech.DefaultVoice
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}

	p := &Pipeline{
		config:    cfg,
		store:     store,
		completer: completer,
		synth:     synth,
		messenger: messenger,
	}
	p.dispatcher = newDispatcher(cfg.QueueSize, cfg.IdleTTL, p.process)
	return p
}

// Handle accepts one inbound notification. Only the first message of the
// batch is considered; self-sent and text-less messages are dropped silently
// with no history mutation and no reply. Handle never blocks on downstream
// work: the message is queued on its identity's serial queue and processed
// by that identity's worker.
func (p *Pipeline) Handle(ctx context.Context, n Notification) {
	if len(n.Messages) == 0 {
		return
	}
	msg := n.Messages[0]
	if msg.FromSelf || msg.Text == "" || msg.Sender == "" {
		return
	}
	p.dispatcher.enqueue(msg)
}

// Stop drains the identity workers. Queued messages that have not started
// processing are abandoned.
func (p *Pipeline) Stop() {
	p.dispatcher.stop()
}

// process runs the full state machine for one filtered message. It never
// panics out and never returns an error: every failure funnels into the
// single text apology.
func (p *Pipeline) process(ctx context.Context, msg Inbound) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline: panic while processing message", "sender", msg.Sender, "panic", r)
			p.apologize(ctx, msg.Sender)
		}
	}()

	// Shield the history from LRU eviction while this message is in flight.
	p.store.Pin(msg.Sender)
	defer p.store.Unpin(msg.Sender)

	hist := p.store.GetOrCreate(msg.Sender, prompt.SystemTurn(p.config.Persona))
	if err := p.store.AppendUser(msg.Sender, msg.Text); err != nil {
		// Unreachable after GetOrCreate; guards against store misuse.
		slog.Error("pipeline: append user turn", "sender", msg.Sender, "err", err)
		return
	}
	slog.Info("message received", "sender", msg.Sender, "conversation", hist.ID)

	turns := prompt.BuildRequest(p.store, msg.Sender, p.config.WindowSize)

	reply, err := p.completer.Complete(ctx, turns)
	switch {
	case errors.Is(err, llm.ErrNoCandidate):
		// Degraded but recoverable: the fallback is stored and voiced like
		// a genuine reply.
		slog.Warn("pipeline: completion returned no candidate, voicing fallback",
			"sender", msg.Sender, "conversation", hist.ID)
	case err != nil:
		slog.Error("pipeline: completion failed", "sender", msg.Sender, "err", err)
		p.apologize(ctx, msg.Sender)
		return
	}

	if err := p.store.AppendAssistant(msg.Sender, reply); err != nil {
		slog.Error("pipeline: append assistant turn", "sender", msg.Sender, "err", err)
		p.apologize(ctx, msg.Sender)
		return
	}

	audio, err := p.synth.Synthesize(ctx, reply, p.config.Voice)
	if err != nil {
		slog.Error("pipeline: speech synthesis failed", "sender", msg.Sender, "err", err)
		p.apologize(ctx, msg.Sender)
		return
	}

	path, err := p.writeTempAudio(audio)
	if err != nil {
		slog.Error("pipeline: write audio artifact", "sender", msg.Sender, "err", err)
		p.apologize(ctx, msg.Sender)
		return
	}
	defer p.cleanupTempAudio(path)

	sendCtx, cancel := context.WithTimeout(ctx, p.config.DeliveryTimeout)
	defer cancel()
	if err := p.messenger.SendVoiceNote(sendCtx, msg.Sender, path, speech.MimeType); err != nil {
		slog.Error("pipeline: voice note delivery failed", "sender", msg.Sender, "err", err)
		p.apologize(ctx, msg.Sender)
		return
	}

	slog.Info("voice reply delivered", "sender", msg.Sender, "conversation", hist.ID, "audio_bytes", len(audio))
}

// apologize sends the fixed text apology, best-effort: a failure here is
// logged and swallowed so the event handler can never crash the process.
// When the worker context is already cancelled the process is shutting
// down, not failing the user, so no apology goes out.
func (p *Pipeline) apologize(ctx context.Context, identity string) {
	if ctx.Err() != nil {
		slog.Info("pipeline: processing aborted by shutdown, skipping apology", "sender", identity)
		return
	}
	sendCtx, cancel := context.WithTimeout(context.Background(), p.config.DeliveryTimeout)
	defer cancel()
	if err := p.messenger.SendText(sendCtx, identity, Apology); err != nil {
		slog.Warn("pipeline: apology delivery failed", "sender", identity, "err", err)
	}
}

// writeTempAudio stores the audio bytes in a transient file for upload.
func (p *Pipeline) writeTempAudio(audio []byte) (string, error) {
	f, err := os.CreateTemp(p.config.TempDir, "keko-voice-*.mp3")
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp audio: %w", err)
	}
	return f.Name(), nil
}

// cleanupTempAudio removes the transient artifact on both the success and
// failure paths. Removal failure is logged, never escalated.
func (p *Pipeline) cleanupTempAudio(path string) {
	if err := os.Remove(path); err != nil {
		slog.Warn("pipeline: could not remove temp audio", "path", path, "err", err)
	}
}

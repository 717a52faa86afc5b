// Package app wires the bot together: session storage, Matrix client,
// persona, gateways, conversation store and pipeline.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/keko-ai/keko/internal/keko/conversation"
	"github.com/keko-ai/keko/internal/keko/llm"
	"github.com/keko-ai/keko/internal/keko/matrix"
	"github.com/keko-ai/keko/internal/keko/persona"
	"github.com/keko-ai/keko/internal/keko/pipeline"
	"github.com/keko-ai/keko/internal/keko/speech"
)

// Config holds application configuration.
type Config struct {
	// Matrix is the messaging-network session configuration.
	Matrix matrix.Config

	// APIKey is the credential for the completion and speech backends.
	// Required; startup fails without it.
	APIKey string
	// BaseURL overrides the backend endpoint for both gateways.
	BaseURL string

	// SessionDBPath is where the sync token is persisted.
	// Defaults to "./keko.db".
	SessionDBPath string
	// PersonaPath is the persona file location. Defaults to "./persona.json".
	PersonaPath string

	// Model is the chat model. Empty uses the gateway default.
	Model string
	// Voice is the synthesis voice. Empty uses the gateway default.
	Voice string
	// WindowSize is the per-request context window. Zero uses the default.
	WindowSize int
	// MaxConversations caps the in-memory conversation store (LRU).
	// Zero means unbounded.
	MaxConversations int
	// CompletionTimeout and SynthesisTimeout bound the two backend calls.
	// Zero uses the gateway defaults.
	CompletionTimeout time.Duration
	SynthesisTimeout  time.Duration
}

// App is the assembled bot.
type App struct {
	config   *Config
	db       *sql.DB
	matrix   *matrix.Client
	pipeline *pipeline.Pipeline
}

// New creates the application from config.
func New(config *Config) (*App, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("backend API key is required")
	}

	sessionPath := config.SessionDBPath
	if sessionPath == "" {
		sessionPath = "./keko.db"
	}
	slog.Info("opening session database", "path", sessionPath)
	db, err := matrix.OpenSessionDB(sessionPath)
	if err != nil {
		return nil, fmt.Errorf("initialize session database: %w", err)
	}

	matrixCfg := config.Matrix
	matrixCfg.DB = db
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize Matrix client: %w", err)
	}

	personaPath := config.PersonaPath
	if personaPath == "" {
		personaPath = "./persona.json"
	}
	p := persona.Load(personaPath)

	completer := llm.New(llm.Config{
		APIKey:  config.APIKey,
		BaseURL: config.BaseURL,
		Model:   config.Model,
		Timeout: config.CompletionTimeout,
	})
	synth := speech.New(speech.Config{
		APIKey:  config.APIKey,
		BaseURL: config.BaseURL,
		Voice:   config.Voice,
		Timeout: config.SynthesisTimeout,
	})

	store := conversation.NewStore(conversation.StoreConfig{
		MaxConversations: config.MaxConversations,
	})

	pipe := pipeline.New(pipeline.Config{
		Persona:    p,
		WindowSize: config.WindowSize,
		Voice:      config.Voice,
	}, store, completer, synth, matrixClient)

	return &App{
		config:   config,
		db:       db,
		matrix:   matrixClient,
		pipeline: pipe,
	}, nil
}

// Run starts the Matrix sync loop and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("start Matrix client: %w", err)
	}

	slog.Info("keko is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop shuts down the pipeline, the Matrix client and the session database.
func (a *App) Stop() {
	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.matrix != nil {
		a.matrix.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// handleMessage converts a Matrix message event into a pipeline
// notification. The conversation identity is the room the message arrived
// in: for a direct-message bot that is the stable identifier of the remote
// party, and it is also where the reply must go.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	var text string
	if content := evt.Content.AsMessage(); content != nil && content.MsgType == event.MsgText {
		text = content.Body
	}

	a.pipeline.Handle(ctx, pipeline.Notification{
		Messages: []pipeline.Inbound{{
			Sender:   evt.RoomID.String(),
			Text:     text,
			FromSelf: evt.Sender.String() == a.matrix.UserID(),
		}},
	})
}

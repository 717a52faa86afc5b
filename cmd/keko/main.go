package main

import (
	"fmt"
	"os"

	"github.com/keko-ai/keko/common/environment"
	"github.com/keko-ai/keko/common/version"
	"github.com/keko-ai/keko/internal/keko/app"
	"github.com/keko-ai/keko/internal/keko/matrix"
)

func main() {
	fmt.Printf("Keko voice bot\n")
	fmt.Printf("Version: %s\n", version.Info())
	fmt.Println()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	keko, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize keko: %v\n", err)
		os.Exit(1)
	}
	defer keko.Stop()

	if err := keko.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running keko: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration from environment variables. The backend
// credential and the Matrix session settings are required; everything else
// has a default.
func loadConfig() (*app.Config, error) {
	apiKey, err := environment.RequiredString("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		Matrix: matrix.Config{
			Homeserver:  homeserver,
			UserID:      userID,
			AccessToken: accessToken,
			Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		},
		APIKey:            apiKey,
		BaseURL:           environment.StringOr("OPENAI_BASE_URL", ""),
		SessionDBPath:     environment.StringOr("KEKO_SESSION_DB", "./keko.db"),
		PersonaPath:       environment.StringOr("KEKO_PERSONA", "./persona.json"),
		Model:             environment.StringOr("KEKO_MODEL", ""),
		Voice:             environment.StringOr("KEKO_VOICE", ""),
		WindowSize:        environment.IntOr("KEKO_WINDOW", 0),
		MaxConversations:  environment.IntOr("KEKO_MAX_CONVERSATIONS", 0),
		CompletionTimeout: environment.DurationOr("KEKO_COMPLETION_TIMEOUT", 0),
		SynthesisTimeout:  environment.DurationOr("KEKO_SYNTHESIS_TIMEOUT", 0),
	}, nil
}

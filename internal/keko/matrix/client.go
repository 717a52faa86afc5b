// Package matrix wraps the mautrix client: sync loop with reconnection,
// session-state persistence, and the two outbound operations the bot needs
// (plain text and voice notes).
package matrix

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/keko-ai/keko/common/retry"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms is an optional list of room IDs to join at startup. Invites
	// received while running are always accepted.
	Rooms []string
	// DB is an optional SQLite connection used to persist the sync token
	// (next_batch) across restarts. When nil, an in-memory store is used
	// and room history is replayed on every restart.
	DB *sql.DB
}

// MessageHandler processes incoming Matrix message events.
type MessageHandler func(ctx context.Context, evt *event.Event)

// Client wraps the mautrix client.
type Client struct {
	client  *mautrix.Client
	config  *Config
	stopCh  chan struct{}
	handler MessageHandler
}

// New creates a Matrix client. Credentials are not verified here; Start
// runs the /whoami check.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
	}

	if config.DB != nil {
		client.Store = newSessionStore(config.DB)
		slog.Info("matrix: persistent session store attached")
	} else {
		slog.Warn("matrix: no session DB, history will replay on restart")
	}

	return c, nil
}

// Start verifies credentials, joins the configured rooms, and begins syncing
// in the background. Message events are delivered to handler.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.handler = handler

	// A transient homeserver error at boot should not kill the process;
	// a bad token should.
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: time.Second}, func() error {
		_, err := c.client.Whoami(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("verify Matrix credentials: %w", err)
	}

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleMembership)

	for _, roomID := range c.config.Rooms {
		if _, err := c.client.JoinRoomByID(ctx, id.RoomID(roomID)); err != nil {
			slog.Warn("matrix: could not join room", "room", roomID, "err", err)
		}
	}

	// Sync in the background with exponential back-off reconnection; a
	// transient homeserver error must not leave the bot deaf to new
	// messages.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("matrix: sync stopped, reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returned nil — clean StopSync.
			return
		}
	}()

	return nil
}

// Stop stops the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// UserID returns the bot's own user ID.
func (c *Client) UserID() string {
	return c.config.UserID
}

// SendText sends a plain text message to a room.
func (c *Client) SendText(ctx context.Context, roomID, text string) error {
	_, err := c.client.SendText(ctx, id.RoomID(roomID), text)
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// SendVoiceNote uploads the audio file at path and sends it to roomID as a
// voice message (m.audio with the MSC3245 voice flag) so clients render it
// as a recorded voice note rather than a file attachment.
func (c *Client) SendVoiceNote(ctx context.Context, roomID, path, mimeType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio artifact: %w", err)
	}

	upload, err := c.client.UploadBytes(ctx, data, mimeType)
	if err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}

	content := event.MessageEventContent{
		MsgType: event.MsgAudio,
		Body:    filepath.Base(path),
		URL:     upload.ContentURI.CUString(),
		Info: &event.FileInfo{
			MimeType: mimeType,
			Size:     len(data),
		},
		MSC3245Voice: &event.MSC3245Voice{},
	}

	_, err = c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("send voice note: %w", err)
	}
	return nil
}

// handleMembership accepts room invites addressed to the bot, so starting a
// direct chat with it is enough to start a conversation.
func (c *Client) handleMembership(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != c.config.UserID {
		return
	}
	if content := evt.Content.AsMember(); content == nil || content.Membership != event.MembershipInvite {
		return
	}
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		slog.Warn("matrix: could not accept invite", "room", evt.RoomID, "err", err)
		return
	}
	slog.Info("matrix: joined room on invite", "room", evt.RoomID, "inviter", evt.Sender)
}

// handleMessage forwards message events to the registered handler. Event
// filtering (self-sent, non-text) is the pipeline's concern, not the
// transport's.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if c.handler != nil {
		c.handler(ctx, evt)
	}
}

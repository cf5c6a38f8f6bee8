// Package adapters implements the conversation collaborators a chat session
// talks to: the remote REN API and an offline SQLite-backed stand-in.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/tOgg1/ren/internal/chat"
	"github.com/tOgg1/ren/internal/config"
	"github.com/tOgg1/ren/internal/db"
)

// Messages returned when closing the active conversation.
const (
	CloseMessageClosed = "Active conversation closed successfully"
	CloseMessageNone   = "No active conversation found"
)

// ErrUserRequired is returned when a backend is opened without a user.
var ErrUserRequired = errors.New("user id is required (set --user, REN_GLOBAL_USER_ID or `ren context set --user`)")

// Backend is a conversation service bound to one user.
type Backend interface {
	chat.HistoryFetcher
	chat.ReplyGenerator

	// CloseConversation ends the user's active conversation.
	CloseConversation(ctx context.Context) (string, error)

	// Close releases backend resources.
	Close() error
}

// Open builds the backend selected by cfg for userID.
func Open(ctx context.Context, cfg *config.Config, userID string) (Backend, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	switch cfg.Backend.Mode {
	case config.BackendHTTP:
		return NewHTTPBackend(cfg.Backend.BaseURL, userID, cfg.Backend.Timeout), nil

	case config.BackendLocal:
		replier, err := NewReplier(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dbCfg := db.DefaultConfig(cfg.DatabasePath())
		if cfg.Local.BusyTimeoutMs > 0 {
			dbCfg.BusyTimeoutMs = cfg.Local.BusyTimeoutMs
		}
		database, err := db.Open(dbCfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return NewLocalBackend(database, replier, userID, cfg.Local.PageSize), nil

	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}

// NewReplier builds the reply generator configured for the local backend.
func NewReplier(ctx context.Context, cfg *config.Config) (Replier, error) {
	switch cfg.Local.Replier {
	case config.ReplierEcho:
		return EchoReplier{}, nil
	case config.ReplierGemini:
		return NewGeminiReplier(ctx, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown replier %q", cfg.Local.Replier)
	}
}

package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tOgg1/ren/internal/db"
	"github.com/tOgg1/ren/internal/logging"
	"github.com/tOgg1/ren/internal/models"
)

// LocalBackend serves history and replies from a local SQLite database,
// following the REN API's semantics.
type LocalBackend struct {
	db       *db.DB
	repo     *db.ConversationRepository
	replier  Replier
	userID   string
	pageSize int
	logger   zerolog.Logger
}

// NewLocalBackend creates a backend over an already migrated database.
func NewLocalBackend(database *db.DB, replier Replier, userID string, pageSize int) *LocalBackend {
	if pageSize < 1 {
		pageSize = 10
	}
	return &LocalBackend{
		db:       database,
		repo:     db.NewConversationRepository(database),
		replier:  replier,
		userID:   userID,
		pageSize: pageSize,
		logger:   logging.Component("local-backend").With().Str("user_id", userID).Logger(),
	}
}

// FetchHistory implements chat.HistoryFetcher.
func (b *LocalBackend) FetchHistory(ctx context.Context, page int) (models.HistoryPage, error) {
	p, err := b.repo.PageMessages(ctx, b.userID, page, b.pageSize)
	if err != nil {
		return models.HistoryPage{}, err
	}
	out := models.HistoryPage{
		Messages:    make([]models.HistoryMessage, 0, len(p.Messages)),
		HasNextPage: p.HasNextPage,
	}
	for _, m := range p.Messages {
		out.Messages = append(out.Messages, m.History())
	}
	return out, nil
}

// GenerateReply implements chat.ReplyGenerator. The user's message and the
// reply are stored together only once the reply exists.
func (b *LocalBackend) GenerateReply(ctx context.Context, text string) (string, error) {
	var history []models.StoredMessage
	conv, err := b.repo.ActiveConversation(ctx, b.userID)
	switch {
	case err == nil:
		history, err = b.repo.ConversationMessages(ctx, conv.ID)
		if err != nil {
			return "", err
		}
	case errors.Is(err, db.ErrConversationNotFound):
	default:
		return "", err
	}

	reply, err := b.replier.Reply(ctx, history, text)
	if err != nil {
		return "", fmt.Errorf("error generating response: %w", err)
	}

	if _, err := b.repo.AppendMessages(ctx, b.userID,
		models.StoredMessage{Role: models.RoleUser, Content: text},
		models.StoredMessage{Role: models.RoleModel, Content: reply},
	); err != nil {
		// An empty reply cannot be stored; it is still shown.
		if errors.Is(err, models.ErrEmptyText) {
			b.logger.Warn().Msg("model returned an empty reply; not stored")
			return reply, nil
		}
		return "", err
	}

	b.logger.Debug().Int("context_messages", len(history)).Msg("reply generated")
	return reply, nil
}

// CloseConversation deactivates the user's active conversation.
func (b *LocalBackend) CloseConversation(ctx context.Context) (string, error) {
	closed, err := b.repo.CloseActive(ctx, b.userID)
	if err != nil {
		return "", err
	}
	if !closed {
		return CloseMessageNone, nil
	}
	return CloseMessageClosed, nil
}

// Close closes the database.
func (b *LocalBackend) Close() error {
	return b.db.Close()
}

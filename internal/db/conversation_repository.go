package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/ren/internal/models"
)

// Conversation repository errors.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUserRequired         = errors.New("user_id is required")
)

// ConversationRepository handles conversation and message persistence.
type ConversationRepository struct {
	db  *DB
	now func() time.Time
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db, now: time.Now}
}

// ActiveConversation returns the user's active conversation.
func (r *ConversationRepository) ActiveConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, active, created_at, updated_at, closed_at
		FROM conversations
		WHERE user_id = ? AND active = 1
	`, userID)
	return scanConversation(row)
}

// AppendMessages stores messages in the user's active conversation,
// starting a new conversation when none is active. Messages are stored in
// the given order and returned with ids and timestamps filled in.
func (r *ConversationRepository) AppendMessages(ctx context.Context, userID string, msgs ...models.StoredMessage) ([]models.StoredMessage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	for i, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid message %d: %w", i, err)
		}
	}

	stored := make([]models.StoredMessage, len(msgs))
	err := r.db.WriteTx(ctx, func(tx *sql.Tx) error {
		now := r.now().UTC()
		convID, err := ensureActive(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		for i, msg := range msgs {
			if msg.ID == "" {
				msg.ID = uuid.New().String()
			}
			if msg.CreatedAt.IsZero() {
				// Keep insertion order visible in timestamps.
				msg.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
			}
			msg.ConversationID = convID
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO messages (id, conversation_id, role, content, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, msg.ID, convID, msg.Role, msg.Content, formatTime(msg.CreatedAt)); err != nil {
				return fmt.Errorf("failed to insert message: %w", err)
			}
			stored[i] = msg
		}

		_, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(now), convID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func ensureActive(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE user_id = ? AND active = 1`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to query active conversation: %w", err)
	}

	id = uuid.New().String()
	ts := formatTime(now)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, active, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
	`, id, userID, ts, ts); err != nil {
		if isUniqueConstraintError(err) {
			// Another writer opened one first.
			if err := tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE user_id = ? AND active = 1`, userID).Scan(&id); err == nil {
				return id, nil
			}
		}
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// ConversationMessages returns every message of a conversation, oldest-first.
func (r *ConversationRepository) ConversationMessages(ctx context.Context, conversationID string) ([]models.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// PageMessages returns one page of the user's messages across all of their
// conversations. Page 1 holds the newest messages; a page past the end is
// clamped to the last page. Messages within the page are oldest-first.
func (r *ConversationRepository) PageMessages(ctx context.Context, userID string, page, perPage int) (*models.MessagePage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	if page < 1 {
		return nil, models.ErrInvalidPage
	}
	if perPage < 1 {
		perPage = 10
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = ?
	`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	totalPages := (total + perPage - 1) / perPage
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}

	result := &models.MessagePage{
		Messages:        []models.StoredMessage{},
		Page:            page,
		TotalPages:      totalPages,
		TotalMessages:   total,
		PerPage:         perPage,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
	if total == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.role, m.content, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = ?
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT ? OFFSET ?
	`, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	result.Messages = msgs
	return result, nil
}

// CloseActive deactivates the user's active conversation. It reports
// whether a conversation was closed.
func (r *ConversationRepository) CloseActive(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, ErrUserRequired
	}
	now := formatTime(r.now())
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET active = 0, closed_at = ?, updated_at = ?
		WHERE user_id = ? AND active = 1
	`, now, now, userID)
	if err != nil {
		return false, fmt.Errorf("failed to close conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func scanConversation(row *sql.Row) (*models.Conversation, error) {
	var conv models.Conversation
	var active int
	var createdAt, updatedAt string
	var closedAt sql.NullString

	if err := row.Scan(&conv.ID, &conv.UserID, &active, &createdAt, &updatedAt, &closedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	conv.Active = active == 1
	var err error
	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if conv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if closedAt.Valid {
		t, err := parseTime(closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse closed_at: %w", err)
		}
		conv.ClosedAt = &t
	}
	return &conv, nil
}

func scanMessages(rows *sql.Rows) ([]models.StoredMessage, error) {
	var msgs []models.StoredMessage
	for rows.Next() {
		var msg models.StoredMessage
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		msg.CreatedAt = t
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}

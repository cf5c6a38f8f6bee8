// Package chat implements the conversation session behind the REN chat screen:
// an ordered, de-duplicated timeline fed by paginated history, optimistic
// local sends and asynchronously generated replies.
package chat

import (
	"context"
	"errors"

	"github.com/tOgg1/ren/internal/models"
)

// HistoryFetcher loads older conversation history one page at a time.
// Calling it repeatedly with the same page must be safe.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, page int) (models.HistoryPage, error)
}

// ReplyGenerator produces the assistant's reply to a user message.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, text string) (string, error)
}

// HistoryFetcherFunc adapts a function to HistoryFetcher.
type HistoryFetcherFunc func(ctx context.Context, page int) (models.HistoryPage, error)

// FetchHistory implements HistoryFetcher.
func (f HistoryFetcherFunc) FetchHistory(ctx context.Context, page int) (models.HistoryPage, error) {
	return f(ctx, page)
}

// ReplyGeneratorFunc adapts a function to ReplyGenerator.
type ReplyGeneratorFunc func(ctx context.Context, text string) (string, error)

// GenerateReply implements ReplyGenerator.
func (f ReplyGeneratorFunc) GenerateReply(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Session errors. They are returned inside settled results, never raised.
var (
	ErrSessionClosed   = errors.New("chat session closed")
	ErrHistoryFetch    = errors.New("history fetch failed")
	ErrReplyGeneration = errors.New("reply generation failed")
	ErrNoHistory       = errors.New("history fetcher is required")
	ErrNoReplies       = errors.New("reply generator is required")
)

const (
	// ReplyFailureText is shown in place of a reply that could not be obtained.
	ReplyFailureText = "Failed to get a response. Please try again."

	// EmptyReplyText is shown when the reply service answers with nothing.
	EmptyReplyText = "Sorry, I didn't understand that."
)

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/ren/internal/logging"
	"github.com/tOgg1/ren/internal/models"
)

// ErrUnsuccessful is returned when the API answers 2xx with success=false.
var ErrUnsuccessful = errors.New("backend reported failure")

// APIError is a non-2xx response from the REN API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("REN API error %d", e.StatusCode)
	}
	return fmt.Sprintf("REN API error %d: %s", e.StatusCode, e.Detail)
}

// HTTPBackend talks to the REN API over HTTP.
type HTTPBackend struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client

	logger zerolog.Logger
}

// NewHTTPBackend creates a client for the API rooted at baseURL.
func NewHTTPBackend(baseURL, userID string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserID:     userID,
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     logging.Component("http-backend"),
	}
}

type wireMessage struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	Role           string   `json:"role"`
	Content        string   `json:"content"`
	CreatedAt      wireTime `json:"created_at"`
}

type historyResponse struct {
	Success    bool          `json:"success"`
	Messages   []wireMessage `json:"messages"`
	Pagination struct {
		CurrentPage int  `json:"current_page"`
		TotalPages  int  `json:"total_pages"`
		HasNextPage bool `json:"has_next_page"`
	} `json:"pagination"`
}

type generateRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type generateResponse struct {
	Reply string `json:"reply"`
}

type closeRequest struct {
	UserID string `json:"user_id"`
}

type closeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FetchHistory implements chat.HistoryFetcher via GET /api/conversations.
// Messages are returned oldest-first.
func (b *HTTPBackend) FetchHistory(ctx context.Context, page int) (models.HistoryPage, error) {
	if page < 1 {
		return models.HistoryPage{}, models.ErrInvalidPage
	}

	q := url.Values{}
	q.Set("user_id", b.UserID)
	q.Set("page", strconv.Itoa(page))

	var resp historyResponse
	if err := b.do(ctx, http.MethodGet, "/api/conversations?"+q.Encode(), nil, &resp); err != nil {
		return models.HistoryPage{}, err
	}
	if !resp.Success {
		return models.HistoryPage{}, ErrUnsuccessful
	}

	return models.HistoryPage{
		Messages:    orderHistory(resp.Messages),
		HasNextPage: resp.Pagination.HasNextPage,
	}, nil
}

// orderHistory puts a page oldest-first. The API sorts newest-first by
// created_at; when every message carries a timestamp they are sorted,
// otherwise the wire order is reversed.
func orderHistory(wire []wireMessage) []models.HistoryMessage {
	out := make([]models.HistoryMessage, len(wire))
	allTimed := true
	for i, m := range wire {
		out[i] = models.HistoryMessage{
			ID:        m.ID,
			Content:   m.Content,
			Role:      m.Role,
			CreatedAt: time.Time(m.CreatedAt),
		}
		if out[i].CreatedAt.IsZero() {
			allTimed = false
		}
	}

	if allTimed {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
		return out
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// GenerateReply implements chat.ReplyGenerator via POST /api/generateText.
func (b *HTTPBackend) GenerateReply(ctx context.Context, text string) (string, error) {
	var resp generateResponse
	if err := b.do(ctx, http.MethodPost, "/api/generateText", generateRequest{UserID: b.UserID, Message: text}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// CloseConversation calls POST /api/close-conversation.
func (b *HTTPBackend) CloseConversation(ctx context.Context) (string, error) {
	var resp closeResponse
	if err := b.do(ctx, http.MethodPost, "/api/close-conversation", closeRequest{UserID: b.UserID}, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", ErrUnsuccessful
	}
	return resp.Message, nil
}

// Close releases idle connections.
func (b *HTTPBackend) Close() error {
	b.HTTPClient.CloseIdleConnections()
	return nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, logging.RedactURL(req.URL.String()), err)
	}
	defer resp.Body.Close()

	b.logger.Debug().
		Str("method", method).
		Str("url", logging.RedactURL(req.URL.String())).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail json.RawMessage `json:"detail"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Detail: detailString(errResp.Detail)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// detailString flattens FastAPI's detail, which is a string for handled
// errors and a list of objects for validation failures.
func detailString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(raw)
}

// wireTime accepts RFC 3339 timestamps, naive ISO timestamps (read as UTC)
// and null. Anything else decodes as the zero time.
type wireTime time.Time

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = wireTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = wireTime{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = wireTime(parsed.UTC())
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	*t = wireTime{}
	return nil
}

package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// naiveTime is how the REN API serializes timestamps: ISO 8601 without a
// zone, implicitly UTC.
const naiveTime = "2006-01-02T15:04:05.999999"

// FakeMessage is one stored turn on the fake API.
type FakeMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

type fakeConversation struct {
	userID   string
	active   bool
	messages []FakeMessage
}

// FakeAPI is an in-memory REN API served over loopback HTTP. It pages
// messages across every conversation of a user, newest-first, and only
// stores a turn once its reply exists.
type FakeAPI struct {
	*httptest.Server

	// PerPage is the page size of GET /api/conversations.
	PerPage int

	// Reply produces the model's answer. It defaults to an echo.
	Reply func(userID, text string) (string, error)

	mu            sync.Mutex
	conversations []*fakeConversation
	failures      map[string]fakeFailure
	requests      []string
	clock         time.Time
}

type fakeFailure struct {
	status int
	detail string
}

// NewFakeAPI starts a fake API that is shut down when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	SkipIfNoNetwork(t)

	f := &FakeAPI{
		PerPage: 10,
		Reply: func(_, text string) (string, error) {
			return "echo: " + text, nil
		},
		failures: make(map[string]fakeFailure),
		clock:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations", f.handleConversations)
	mux.HandleFunc("POST /api/generateText", f.handleGenerate)
	mux.HandleFunc("POST /api/close-conversation", f.handleClose)
	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

// Seed appends turns to the user's active conversation, stamping each one a
// second after the previous.
func (f *FakeAPI) Seed(userID string, turns ...FakeMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := f.activeLocked(userID)
	for _, m := range turns {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = f.tickLocked()
		}
		conv.messages = append(conv.messages, m)
	}
}

// FailNext makes the next request to path answer status with a FastAPI
// style {"detail": ...} body.
func (f *FakeAPI) FailNext(path string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = fakeFailure{status: status, detail: detail}
}

// Requests returns "METHOD /path?query" for every request served so far.
func (f *FakeAPI) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Messages returns every stored message for a user, oldest-first.
func (f *FakeAPI) Messages(userID string) []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allLocked(userID)
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
		failure, fail := f.failures[r.URL.Path]
		delete(f.failures, r.URL.Path)
		f.mu.Unlock()

		if fail {
			writeJSON(w, failure.status, map[string]string{"detail": failure.detail})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) handleConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]string{{"msg": "value is not a valid integer"}},
			})
			return
		}
		page = n
	}

	f.mu.Lock()
	all := f.allLocked(userID)
	f.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	totalPages := (total + f.PerPage - 1) / f.PerPage
	if page < 1 {
		page = 1
	}
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}
	start := min((page-1)*f.PerPage, total)
	end := min(start+f.PerPage, total)

	messages := make([]map[string]any, 0, end-start)
	for _, m := range all[start:end] {
		messages = append(messages, map[string]any{
			"role":       m.Role,
			"content":    m.Content,
			"created_at": m.CreatedAt.UTC().Format(naiveTime),
		})
	}
	if totalPages == 0 {
		totalPages = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"messages": messages,
		"pagination": map[string]any{
			"current_page":      page,
			"total_pages":       totalPages,
			"has_next_page":     page < totalPages,
			"has_previous_page": page > 1,
			"total_messages":    total,
			"messages_per_page": f.PerPage,
		},
	})
}

func (f *FakeAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Message cannot be empty"})
		return
	}

	reply, err := f.Reply(req.UserID, req.Message)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"detail": fmt.Sprintf("Error generating response: %v", err),
		})
		return
	}

	f.mu.Lock()
	conv := f.activeLocked(req.UserID)
	conv.messages = append(conv.messages,
		FakeMessage{Role: "user", Content: req.Message, CreatedAt: f.tickLocked()},
		FakeMessage{Role: "model", Content: reply, CreatedAt: f.tickLocked()},
	)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (f *FakeAPI) handleClose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	closed := false
	for _, c := range f.conversations {
		if c.userID == req.UserID && c.active {
			c.active = false
			closed = true
		}
	}
	f.mu.Unlock()

	msg := "No active conversation found"
	if closed {
		msg = "Active conversation closed successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

func (f *FakeAPI) activeLocked(userID string) *fakeConversation {
	for _, c := range f.conversations {
		if c.userID == userID && c.active {
			return c
		}
	}
	c := &fakeConversation{userID: userID, active: true}
	f.conversations = append(f.conversations, c)
	return c
}

func (f *FakeAPI) allLocked(userID string) []FakeMessage {
	var out []FakeMessage
	for _, c := range f.conversations {
		if c.userID == userID {
			out = append(out, c.messages...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *FakeAPI) tickLocked() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

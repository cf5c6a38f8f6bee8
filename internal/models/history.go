package models

import "time"

// HistoryMessage is one entry returned by the history service.
type HistoryMessage struct {
	// ID is the server-provided identifier. It may be empty.
	ID        string    `json:"id,omitempty"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// HistoryPage is one page of history. Messages inside a page are ordered
// oldest-first; page 1 holds the newest messages.
type HistoryPage struct {
	Messages    []HistoryMessage `json:"messages"`
	HasNextPage bool             `json:"has_next_page"`
}

// PaginationCursor tracks how much history a session has loaded.
type PaginationCursor struct {
	// Page is the next page to request (1-indexed).
	Page int `json:"page"`

	// Exhausted is set once the history service reports no further pages.
	Exhausted bool `json:"exhausted"`
}

// NewPaginationCursor returns the cursor a session starts with.
func NewPaginationCursor() PaginationCursor {
	return PaginationCursor{Page: 1}
}

// LoadResult is the settled outcome of loading one history page.
type LoadResult struct {
	Appended  int   `json:"appended"`
	Exhausted bool  `json:"exhausted"`
	Err       error `json:"-"`
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is the persisted CLI context: who is chatting and against which
// backend, so repeated invocations do not need --user.
type Context struct {
	// UserID is the selected REN user.
	UserID string `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	// Backend is the preferred backend mode (http, local).
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IsEmpty returns true if no context is set.
func (c *Context) IsEmpty() bool {
	return c.UserID == "" && c.Backend == ""
}

// HasUser returns true if a user is set.
func (c *Context) HasUser() bool {
	return c.UserID != ""
}

// Clear removes all context.
func (c *Context) Clear() {
	c.UserID = ""
	c.Backend = ""
	c.UpdatedAt = time.Now()
}

// SetUser sets the user context.
func (c *Context) SetUser(id string) {
	c.UserID = strings.TrimSpace(id)
	c.UpdatedAt = time.Now()
}

// SetBackend sets the preferred backend mode.
func (c *Context) SetBackend(mode string) error {
	switch mode {
	case BackendHTTP, BackendLocal:
	default:
		return fmt.Errorf("backend must be one of http, local")
	}
	c.Backend = mode
	c.UpdatedAt = time.Now()
	return nil
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no context set)"
	}
	var parts []string
	if c.HasUser() {
		parts = append(parts, fmt.Sprintf("user:%s", shortID(c.UserID)))
	}
	if c.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend:%s", c.Backend))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses the default path (~/.config/ren/context.yaml).
func NewContextStore(path string) *ContextStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "ren", "context.yaml")
	}
	return &ContextStore{path: path}
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}

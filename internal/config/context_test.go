package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContext_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want bool
	}{
		{name: "empty context", ctx: Context{}, want: true},
		{name: "with user only", ctx: Context{UserID: "691985d719a05b6423f9f74b"}, want: false},
		{name: "with backend only", ctx: Context{Backend: BackendLocal}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.ctx.IsEmpty())
		})
	}
}

func TestContext_String(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{name: "empty", ctx: Context{}, want: "(no context set)"},
		{name: "long user id is shortened", ctx: Context{UserID: "691985d719a05b6423f9f74b"}, want: "user:691985d719a0"},
		{name: "user and backend", ctx: Context{UserID: "u1", Backend: BackendHTTP}, want: "user:u1 backend:http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.ctx.String())
		})
	}
}

func TestContext_SetBackend(t *testing.T) {
	var c Context
	require.NoError(t, c.SetBackend(BackendLocal))
	require.Equal(t, BackendLocal, c.Backend)
	require.Error(t, c.SetBackend("grpc"))
	require.Equal(t, BackendLocal, c.Backend)
}

func TestContextStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "context.yaml")
	store := NewContextStore(path)
	require.Equal(t, path, store.Path())

	// Missing file loads as empty.
	loaded, err := store.Load()
	require.NoError(t, err)
	require.True(t, loaded.IsEmpty())

	ctx := &Context{}
	ctx.SetUser("  u-42 ")
	require.NoError(t, ctx.SetBackend(BackendHTTP))
	require.NoError(t, store.Save(ctx))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, "u-42", loaded.UserID)
	require.Equal(t, BackendHTTP, loaded.Backend)
	require.False(t, loaded.UpdatedAt.IsZero())

	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.NoError(t, store.Clear())
}

func TestContextStore_LoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_id: [unterminated"), 0o644))

	_, err := NewContextStore(path).Load()
	require.Error(t, err)
}

package adapters

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/ren/internal/chat"
	"github.com/tOgg1/ren/internal/models"
	"github.com/tOgg1/ren/internal/testutil"
)

func seedTurns(api *testutil.FakeAPI, userID string, n int) {
	for i := 1; i <= n; i++ {
		role := models.RoleUser
		if i%2 == 0 {
			role = models.RoleModel
		}
		api.Seed(userID, testutil.FakeMessage{Role: role, Content: fmt.Sprintf("m%02d", i)})
	}
}

func texts(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestHTTPSessionSkipsOverlapAfterSend(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	seedTurns(api, "u1", 15)

	b := NewHTTPBackend(api.URL, "u1", 5*time.Second)
	s, err := chat.NewSession(b, b)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	first := s.LoadNext(ctx)
	require.NoError(t, first.Err)
	require.Equal(t, 10, first.Appended)
	require.False(t, first.Exhausted)

	// The new turn pushes m07 and m06 onto page 2.
	res := s.Send(ctx, "hello")
	require.Equal(t, chat.SendDelivered, res.Status)
	require.Equal(t, "echo: hello", res.Reply)

	second := s.LoadNext(ctx)
	require.NoError(t, second.Err)
	require.Equal(t, 5, second.Appended)
	require.True(t, second.Exhausted)

	want := []string{"echo: hello", "hello"}
	for i := 15; i >= 1; i-- {
		want = append(want, fmt.Sprintf("m%02d", i))
	}
	require.Equal(t, want, texts(s.Snapshot()))
	require.Equal(t, []string{
		"GET /api/conversations?page=1&user_id=u1",
		"POST /api/generateText",
		"GET /api/conversations?page=2&user_id=u1",
	}, api.Requests())
}

func TestHTTPSessionReplyFailureStoresNothing(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.FailNext("/api/generateText", 500, "Error generating response: quota exceeded")

	b := NewHTTPBackend(api.URL, "u1", 5*time.Second)
	s, err := chat.NewSession(b, b)
	require.NoError(t, err)
	defer s.Close()

	res := s.Send(context.Background(), "hello")
	require.Equal(t, chat.SendFailed, res.Status)
	require.ErrorIs(t, res.Err, chat.ErrReplyGeneration)

	var apiErr *APIError
	require.True(t, errors.As(res.Err, &apiErr))
	require.Equal(t, 500, apiErr.StatusCode)
	require.Contains(t, apiErr.Detail, "quota exceeded")

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.True(t, snap[0].IsError())
	require.Equal(t, chat.ReplyFailureText, snap[0].Text)
	require.Equal(t, "hello", snap[1].Text)
	require.Empty(t, api.Messages("u1"))
}

func TestHTTPSessionHistoryFailureThenRetry(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	seedTurns(api, "u1", 3)
	api.FailNext("/api/conversations", 503, "database unavailable")

	b := NewHTTPBackend(api.URL, "u1", 5*time.Second)
	s, err := chat.NewSession(b, b)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	failed := s.LoadNext(ctx)
	require.ErrorIs(t, failed.Err, chat.ErrHistoryFetch)
	require.Equal(t, 1, s.Cursor().Page)

	retry := s.LoadNext(ctx)
	require.NoError(t, retry.Err)
	require.Equal(t, 3, retry.Appended)
	require.True(t, retry.Exhausted)
	require.Equal(t, []string{"m03", "m02", "m01"}, texts(s.Snapshot()))
}

func TestHTTPBackendCloseAgainstFakeAPI(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	b := NewHTTPBackend(api.URL, "u1", 5*time.Second)
	ctx := context.Background()

	msg, err := b.CloseConversation(ctx)
	require.NoError(t, err)
	require.Equal(t, CloseMessageNone, msg)

	_, err = b.GenerateReply(ctx, "hi")
	require.NoError(t, err)

	msg, err = b.CloseConversation(ctx)
	require.NoError(t, err)
	require.Equal(t, CloseMessageClosed, msg)
}

package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/ren/internal/models"
)

func historyMsg(id, text string) models.Message {
	return models.Message{ID: id, Text: text, Sender: models.SenderAssistant, Origin: models.OriginRemoteHistory}
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func texts(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestTimelinePrependHistorySkipsKnownIDs(t *testing.T) {
	tl := NewTimeline(nil)

	require.Equal(t, 2, tl.PrependHistory([]models.Message{historyMsg("a", "1"), historyMsg("b", "2")}))
	require.Equal(t, 1, tl.PrependHistory([]models.Message{historyMsg("b", "2"), historyMsg("c", "3")}))
	require.Equal(t, 0, tl.PrependHistory([]models.Message{historyMsg("a", "1"), historyMsg("c", "3")}))
	require.Equal(t, 1, tl.PrependHistory([]models.Message{historyMsg("d", "4"), historyMsg("d", "4")}))

	require.Equal(t, []string{"a", "b", "c", "d"}, ids(tl.Snapshot()))
}

func TestTimelineNeverHoldsDuplicateIDs(t *testing.T) {
	tl := NewTimeline(nil)
	batches := [][]string{
		{"a", "b", "c"},
		{"c", "d"},
		{"a", "e", "e", "b"},
		{},
		{"f", "a"},
	}
	for _, batch := range batches {
		msgs := make([]models.Message, 0, len(batch))
		for _, id := range batch {
			msgs = append(msgs, historyMsg(id, id))
		}
		tl.PrependHistory(msgs)
	}
	require.False(t, tl.InsertLocal(models.Message{ID: "a", Text: "dup", Sender: models.SenderUser}))

	seen := make(map[string]bool)
	for _, m := range tl.Snapshot() {
		require.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
	require.Len(t, seen, 6)
}

func TestTimelineLocalInsertStaysNewestAfterLateHistory(t *testing.T) {
	tl := NewTimeline(nil)
	require.True(t, tl.InsertLocal(models.Message{ID: "m1", Text: "mine", Sender: models.SenderUser}))
	tl.PrependHistory([]models.Message{historyMsg("h1", "newer"), historyMsg("h2", "older")})

	snap := tl.Snapshot()
	require.Equal(t, []string{"m1", "h1", "h2"}, ids(snap))
	require.Equal(t, models.OriginLocalPending, snap[0].Origin)
}

func TestTimelineReplacePendingWithConfirmed(t *testing.T) {
	tl := NewTimeline(nil)
	tl.PrependHistory([]models.Message{historyMsg("h1", "old")})
	tl.InsertLocal(models.Message{ID: "p1", Text: "How are you?", Sender: models.SenderUser})

	ok := tl.ReplacePendingWithConfirmed("p1", models.Message{ID: "r1", Text: "I'm good"})
	require.True(t, ok)

	snap := tl.Snapshot()
	require.Equal(t, []string{"r1", "p1", "h1"}, ids(snap))
	require.Equal(t, models.OriginLocalConfirmed, snap[0].Origin)
	require.Equal(t, models.SenderAssistant, snap[0].Sender)
	require.Equal(t, models.OriginLocalConfirmed, snap[1].Origin)

	// A second confirmation of the same entry changes nothing.
	require.False(t, tl.ReplacePendingWithConfirmed("p1", models.Message{ID: "r2", Text: "again"}))
	require.Equal(t, 3, tl.Len())
}

func TestTimelineReplacePendingMissingIsNoop(t *testing.T) {
	var changes []models.TimelineChange
	tl := NewTimeline(func(c models.TimelineChange) { changes = append(changes, c) })

	require.False(t, tl.ReplacePendingWithConfirmed("missing", models.Message{ID: "r1", Text: "x"}))
	require.Zero(t, tl.Len())
	require.Empty(t, changes)
}

func TestTimelineAppendErrorKeepsPendingEntry(t *testing.T) {
	tl := NewTimeline(nil)
	tl.InsertLocal(models.Message{ID: "p1", Text: "hello", Sender: models.SenderUser})

	require.True(t, tl.AppendError(models.Message{ID: "e1", Text: ReplyFailureText}))

	snap := tl.Snapshot()
	require.Equal(t, []string{"e1", "p1"}, ids(snap))
	require.True(t, snap[0].IsError())
	require.Equal(t, models.SenderAssistant, snap[0].Sender)
	require.Equal(t, "hello", snap[1].Text)
	require.True(t, snap[1].IsPending())
}

func TestTimelineNotifiesEveryMutation(t *testing.T) {
	var changes []models.TimelineChange
	tl := NewTimeline(func(c models.TimelineChange) { changes = append(changes, c) })

	tl.PrependHistory([]models.Message{historyMsg("h1", "a")})
	tl.PrependHistory([]models.Message{historyMsg("h1", "a")})
	tl.InsertLocal(models.Message{ID: "p1", Text: "b", Sender: models.SenderUser})
	tl.ReplacePendingWithConfirmed("p1", models.Message{ID: "r1", Text: "c"})
	tl.AppendError(models.Message{ID: "e1", Text: "d"})

	require.Len(t, changes, 4)
	require.Equal(t, models.ChangeHistoryPrepended, changes[0].Kind)
	require.Equal(t, models.ChangeLocalInserted, changes[1].Kind)
	require.Equal(t, models.ChangePendingConfirmed, changes[2].Kind)
	require.Equal(t, []string{"p1", "r1"}, changes[2].IDs)
	require.Equal(t, models.ChangeErrorAppended, changes[3].Kind)
}

func TestTimelineSnapshotIsACopy(t *testing.T) {
	tl := NewTimeline(nil)
	tl.PrependHistory([]models.Message{historyMsg("h1", "a")})

	snap := tl.Snapshot()
	snap[0].Text = "mutated"

	got, ok := tl.Get("h1")
	require.True(t, ok)
	require.Equal(t, "a", got.Text)
}

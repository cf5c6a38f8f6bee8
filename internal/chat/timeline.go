package chat

import (
	"slices"

	"github.com/tOgg1/ren/internal/models"
)

// Timeline is the ordered, de-duplicated message list of one session.
// Entries are kept newest-first in logical arrival order.
//
// Timeline does no locking of its own; the owning Session serializes access.
type Timeline struct {
	entries []models.Message
	ids     map[string]struct{}
	observe func(models.TimelineChange)
}

// NewTimeline returns an empty timeline. observe, when non-nil, is called
// synchronously after every mutation.
func NewTimeline(observe func(models.TimelineChange)) *Timeline {
	return &Timeline{
		ids:     make(map[string]struct{}),
		observe: observe,
	}
}

// PrependHistory adds older messages behind the oldest entry, keeping the
// given newest-first order. Messages whose id is already present, or repeated
// within msgs, are skipped. It returns the number of messages added.
func (t *Timeline) PrependHistory(msgs []models.Message) int {
	added := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.ID == "" || t.Contains(msg.ID) {
			continue
		}
		t.ids[msg.ID] = struct{}{}
		t.entries = append(t.entries, msg)
		added = append(added, msg.ID)
	}
	if len(added) > 0 {
		t.notify(models.ChangeHistoryPrepended, added...)
	}
	return len(added)
}

// InsertLocal places a locally authored message at the newest position and
// marks it pending.
func (t *Timeline) InsertLocal(msg models.Message) bool {
	if msg.ID == "" || t.Contains(msg.ID) {
		return false
	}
	msg.Origin = models.OriginLocalPending
	t.insertAt(0, msg)
	t.notify(models.ChangeLocalInserted, msg.ID)
	return true
}

// ReplacePendingWithConfirmed marks the pending entry confirmed and places
// reply directly after it. It is a no-op when pendingID is not a pending
// entry of this timeline.
func (t *Timeline) ReplacePendingWithConfirmed(pendingID string, reply models.Message) bool {
	pos := t.position(pendingID)
	if pos < 0 || !t.entries[pos].IsPending() {
		return false
	}

	t.entries[pos].Origin = models.OriginLocalConfirmed
	ids := []string{pendingID}
	if reply.ID != "" && !t.Contains(reply.ID) {
		reply.Sender = models.SenderAssistant
		reply.Origin = models.OriginLocalConfirmed
		t.insertAt(pos, reply)
		ids = append(ids, reply.ID)
	}
	t.notify(models.ChangePendingConfirmed, ids...)
	return true
}

// AppendError places a synthetic assistant failure notice at the newest
// position. Existing entries are left untouched.
func (t *Timeline) AppendError(msg models.Message) bool {
	if msg.ID == "" || t.Contains(msg.ID) {
		return false
	}
	msg.Sender = models.SenderAssistant
	msg.Origin = models.OriginLocalError
	t.insertAt(0, msg)
	t.notify(models.ChangeErrorAppended, msg.ID)
	return true
}

// Snapshot returns a newest-first copy of the timeline.
func (t *Timeline) Snapshot() []models.Message {
	return slices.Clone(t.entries)
}

// Get returns the entry with the given id.
func (t *Timeline) Get(id string) (models.Message, bool) {
	pos := t.position(id)
	if pos < 0 {
		return models.Message{}, false
	}
	return t.entries[pos], true
}

// Contains reports whether an entry with the id exists.
func (t *Timeline) Contains(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	return len(t.entries)
}

func (t *Timeline) insertAt(pos int, msg models.Message) {
	t.ids[msg.ID] = struct{}{}
	t.entries = slices.Insert(t.entries, pos, msg)
}

func (t *Timeline) position(id string) int {
	if !t.Contains(id) {
		return -1
	}
	return slices.IndexFunc(t.entries, func(m models.Message) bool { return m.ID == id })
}

func (t *Timeline) notify(kind models.ChangeKind, ids ...string) {
	if t.observe == nil {
		return
	}
	t.observe(models.TimelineChange{Kind: kind, IDs: ids})
}

// Package history keeps the recent-message log the spam detectors count over.
//
// The window is an append-only list that grows until Reset is called on a
// fixed timer. It is not expired per entry; the reset interval must exceed the
// longest detection interval so an author's recent messages stay together.
package history

import (
	"sync"
	"time"
)

type Entry struct {
	MessageID string
	GuildID   string
	AuthorID  string
	ChannelID string
	// Content is the normalized message text.
	Content string
	SentAt  time.Time
}

type Window struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewWindow() *Window {
	return &Window{}
}

func (w *Window) Record(entry Entry) {
	w.mu.Lock()
	w.entries = append(w.entries, entry)
	w.mu.Unlock()
}

// RecordEdit overwrites the content of a tracked message. Messages that were
// never seen or were dropped by a reset are not re-tracked.
func (w *Window) RecordEdit(messageID, content string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.entries {
		if w.entries[i].MessageID == messageID {
			w.entries[i].Content = content
			return true
		}
	}
	return false
}

// Query returns a copy of the author's entries in the guild, oldest first.
func (w *Window) Query(authorID, guildID string) []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []Entry
	for _, entry := range w.entries {
		if entry.AuthorID == authorID && entry.GuildID == guildID {
			out = append(out, entry)
		}
	}
	return out
}

func (w *Window) Reset() {
	w.mu.Lock()
	w.entries = nil
	w.mu.Unlock()
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

package history

import (
	"sync"
	"testing"
	"time"
)

func TestWindowQueryScopesByAuthorAndGuild(t *testing.T) {
	window := NewWindow()
	now := time.Now()
	window.Record(Entry{MessageID: "1", GuildID: "g1", AuthorID: "u1", Content: "a", SentAt: now})
	window.Record(Entry{MessageID: "2", GuildID: "g1", AuthorID: "u2", Content: "b", SentAt: now})
	window.Record(Entry{MessageID: "3", GuildID: "g2", AuthorID: "u1", Content: "c", SentAt: now})
	window.Record(Entry{MessageID: "4", GuildID: "g1", AuthorID: "u1", Content: "d", SentAt: now})

	got := window.Query("u1", "g1")
	if len(got) != 2 || got[0].MessageID != "1" || got[1].MessageID != "4" {
		t.Fatalf("unexpected entries %+v", got)
	}
}

func TestWindowRecordEdit(t *testing.T) {
	window := NewWindow()
	window.Record(Entry{MessageID: "1", GuildID: "g1", AuthorID: "u1", Content: "before"})

	if !window.RecordEdit("1", "after") {
		t.Fatalf("expected edit to apply")
	}
	if got := window.Query("u1", "g1"); got[0].Content != "after" {
		t.Fatalf("expected edited content, got %q", got[0].Content)
	}
	if window.RecordEdit("missing", "x") {
		t.Fatalf("expected edit of unknown message to be ignored")
	}
	if window.Len() != 1 {
		t.Fatalf("edit must not append, len=%d", window.Len())
	}
}

func TestWindowResetClearsHistory(t *testing.T) {
	window := NewWindow()
	window.Record(Entry{MessageID: "1", GuildID: "g1", AuthorID: "u1"})
	window.Reset()
	if got := window.Query("u1", "g1"); len(got) != 0 {
		t.Fatalf("expected empty window after reset, got %+v", got)
	}
	if window.RecordEdit("1", "x") {
		t.Fatalf("expected edit after reset to be ignored")
	}
}

func TestWindowQueryReturnsCopy(t *testing.T) {
	window := NewWindow()
	window.Record(Entry{MessageID: "1", GuildID: "g1", AuthorID: "u1", Content: "a"})
	got := window.Query("u1", "g1")
	got[0].Content = "mutated"
	if again := window.Query("u1", "g1"); again[0].Content != "a" {
		t.Fatalf("query result aliases window storage")
	}
}

func TestWindowConcurrentRecord(t *testing.T) {
	window := NewWindow()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			window.Record(Entry{GuildID: "g1", AuthorID: "u1"})
			_ = window.Query("u1", "g1")
		}()
	}
	wg.Wait()
	if window.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", window.Len())
	}
}

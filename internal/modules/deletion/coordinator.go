// Package deletion removes offending messages in per-channel batches and
// remembers what it removed, so delete events caused by moderation are not
// reported as unexplained and fast spam bursts log only once.
package deletion

import (
	"context"
	"sync"
	"time"

	"warden/internal/chat"
	"warden/internal/metrics"

	"go.uber.org/zap"
)

// BulkLimit is the most message ids the bulk delete endpoint accepts.
const BulkLimit = 100

// Deleter is the slice of the messaging API the coordinator drives.
type Deleter interface {
	DeleteMessage(channelID, messageID string) error
	BulkDeleteMessages(channelID string, messageIDs []string) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Coordinator struct {
	api     Deleter
	logger  *zap.Logger
	metrics *metrics.Metrics
	horizon time.Duration
	clock   Clock

	mu              sync.Mutex
	recentlyDeleted map[string]time.Time
	lastDeletions   map[string]time.Time
	pending         map[string][]string
	draining        map[string]bool
	wg              sync.WaitGroup
}

func New(api Deleter, horizon time.Duration, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		api:             api,
		logger:          logger,
		metrics:         m,
		horizon:         horizon,
		clock:           realClock{},
		recentlyDeleted: make(map[string]time.Time),
		lastDeletions:   make(map[string]time.Time),
		pending:         make(map[string][]string),
		draining:        make(map[string]bool),
	}
}

func (c *Coordinator) WithClock(clock Clock) {
	c.mu.Lock()
	c.clock = clock
	c.mu.Unlock()
}

// MarkForDeletion queues the message for removal and reports whether its
// author already had a message removed within the horizon.
func (c *Coordinator) MarkForDeletion(msg chat.Message) bool {
	return c.MarkBatch([]chat.Message{msg})
}

// MarkBatch queues every message under one lock, so a single drain cycle sees
// the whole batch. The result is the recently-cleaned state of the first
// message's author before anything in the batch was marked.
func (c *Coordinator) MarkBatch(msgs []chat.Message) bool {
	if len(msgs) == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	cleaned := c.withinHorizon(c.lastDeletions, msgs[0].AuthorID, now)
	for _, msg := range msgs {
		c.lastDeletions[msg.AuthorID] = now
		if c.withinHorizon(c.recentlyDeleted, msg.ID, now) {
			continue
		}
		c.recentlyDeleted[msg.ID] = now
		c.pending[msg.ChannelID] = append(c.pending[msg.ChannelID], msg.ID)
		c.metrics.PendingDeletes(1)
		if !c.draining[msg.ChannelID] {
			c.draining[msg.ChannelID] = true
			c.wg.Add(1)
			go c.drain(msg.ChannelID)
		}
	}
	return cleaned
}

// IsOurDeletion reports whether the coordinator removed the message within the
// horizon.
func (c *Coordinator) IsOurDeletion(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withinHorizon(c.recentlyDeleted, messageID, c.clock.Now())
}

func (c *Coordinator) RecentlyCleaned(authorID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withinHorizon(c.lastDeletions, authorID, c.clock.Now())
}

// Prune drops tracking entries older than the horizon.
func (c *Coordinator) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for id, at := range c.recentlyDeleted {
		if now.Sub(at) > c.horizon {
			delete(c.recentlyDeleted, id)
			removed++
		}
	}
	for id, at := range c.lastDeletions {
		if now.Sub(at) > c.horizon {
			delete(c.lastDeletions, id)
			removed++
		}
	}
	return removed
}

// Wait blocks until every drain loop has exited or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) withinHorizon(entries map[string]time.Time, key string, now time.Time) bool {
	at, ok := entries[key]
	return ok && now.Sub(at) <= c.horizon
}

func (c *Coordinator) drain(channelID string) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		queue := c.pending[channelID]
		if len(queue) == 0 {
			delete(c.pending, channelID)
			delete(c.draining, channelID)
			c.mu.Unlock()
			return
		}
		c.pending[channelID] = nil
		c.mu.Unlock()

		c.metrics.PendingDeletes(-len(queue))
		c.flush(channelID, dedupe(queue))
	}
}

func (c *Coordinator) flush(channelID string, ids []string) {
	for start := 0; start < len(ids); start += BulkLimit {
		end := start + BulkLimit
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		if len(chunk) == 1 {
			c.metrics.DeleteRequest("single")
			if err := c.api.DeleteMessage(channelID, chunk[0]); err != nil {
				c.metrics.DeleteFailure("single")
				c.logger.Warn("message delete failed", zap.String("channel_id", channelID), zap.String("message_id", chunk[0]), zap.Error(err))
			}
			continue
		}
		c.metrics.DeleteRequest("bulk")
		if err := c.api.BulkDeleteMessages(channelID, chunk); err != nil {
			c.metrics.DeleteFailure("bulk")
			c.logger.Warn("bulk delete failed", zap.String("channel_id", channelID), zap.Int("count", len(chunk)), zap.Error(err))
		}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

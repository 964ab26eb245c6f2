package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// startMaintenance schedules deletion-record pruning and the history window
// reset.
func (b *Bot) startMaintenance() error {
	b.cron = cron.New()
	if _, err := b.cron.AddFunc(every(b.cfg.Spam.PruneInterval()), b.prune); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}
	if _, err := b.cron.AddFunc(every(b.cfg.Spam.WindowResetInterval()), b.resetWindow); err != nil {
		return fmt.Errorf("schedule window reset: %w", err)
	}
	b.cron.Start()
	return nil
}

func every(interval time.Duration) string {
	return "@every " + interval.String()
}

func (b *Bot) prune() {
	removed := b.deletions.Prune()
	idle := b.dm.Prune(time.Now())
	if removed > 0 || idle > 0 {
		b.logger.Debug("pruned tracking state", zap.Int("deletions", removed), zap.Int("dm_limiters", idle))
	}
}

func (b *Bot) resetWindow() {
	size := b.window.Len()
	b.window.Reset()
	b.metrics.WindowSize(0)
	b.logger.Debug("history window reset", zap.Int("entries", size))
}

// dmThrottle allows one DM per user per cooldown.
type dmThrottle struct {
	mu       sync.Mutex
	cooldown time.Duration
	limiters map[string]*rate.Limiter
}

func newDMThrottle(cooldown time.Duration) *dmThrottle {
	return &dmThrottle{cooldown: cooldown, limiters: make(map[string]*rate.Limiter)}
}

func (d *dmThrottle) Allow(userID string) bool {
	return d.AllowAt(userID, time.Now())
}

func (d *dmThrottle) AllowAt(userID string, now time.Time) bool {
	if d.cooldown <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	limiter := d.limiters[userID]
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(d.cooldown), 1)
		d.limiters[userID] = limiter
	}
	return limiter.AllowN(now, 1)
}

// Prune drops limiters that have fully refilled.
func (d *dmThrottle) Prune(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for userID, limiter := range d.limiters {
		if limiter.TokensAt(now) >= 1 {
			delete(d.limiters, userID)
			removed++
		}
	}
	return removed
}

// Package audit fans moderation events out to the structured log and to the
// guild's log channels.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Sink names the guild channel an entry is posted to.
type Sink string

const (
	SinkModeration Sink = "moderation"
	SinkServer     Sink = "server"
)

type Entry struct {
	Sink    Sink
	Level   string
	GuildID string
	UserID  string
	Event   string
	// Details is the rendered channel line.
	Details   string
	CreatedAt time.Time
}

type Logger struct {
	logger *zap.Logger
	notify func(context.Context, Entry)
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Sink == "" {
		entry.Sink = SinkModeration
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("sink", string(entry.Sink)),
		zap.String("level", entry.Level),
		zap.String("guild_id", entry.GuildID),
		zap.String("user_id", entry.UserID),
		zap.String("event", entry.Event),
		zap.String("details", entry.Details),
	)
}

// Moderation posts a line to the moderation log.
func (l *Logger) Moderation(ctx context.Context, guildID, userID, event, details string) {
	l.Log(ctx, Entry{Sink: SinkModeration, Level: LevelWarn, GuildID: guildID, UserID: userID, Event: event, Details: details})
}

// Server posts a line to the server log.
func (l *Logger) Server(ctx context.Context, guildID, userID, event, details string) {
	l.Log(ctx, Entry{Sink: SinkServer, Level: LevelInfo, GuildID: guildID, UserID: userID, Event: event, Details: details})
}

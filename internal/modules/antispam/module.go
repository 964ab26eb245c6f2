// Package antispam classifies new and edited messages against the author's
// recent history and the filtered expressions, and carries out deletions and
// punishments for the verdicts it reaches.
package antispam

import (
	"context"
	"fmt"
	"time"

	"warden/internal/chat"
	"warden/internal/config"
	"warden/internal/metrics"
	"warden/internal/modules/history"
	"warden/internal/modules/roles"
	"warden/internal/utils"

	"go.uber.org/zap"
)

const (
	DetectorAttachment  = "attachment"
	DetectorBannedBurst = "banned_burst"
	DetectorBannedWord  = "banned_word"
	DetectorBurst       = "burst"
	DetectorDuplicates  = "duplicates"
)

type Matcher interface {
	Match(content string) (string, bool)
}

// Deletions queues messages for removal; the result reports whether the
// author was already cleaned up within the deletion horizon.
type Deletions interface {
	MarkForDeletion(msg chat.Message) bool
	MarkBatch(msgs []chat.Message) bool
}

type Punisher interface {
	Mute(ctx context.Context, member chat.Member) roles.Result
	Kick(ctx context.Context, member chat.Member, reason string) roles.Result
	Ban(ctx context.Context, member chat.Member, reason string) roles.Result
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Input struct {
	Message chat.Message
	Member  chat.Member
	Edit    bool
}

type Verdict struct {
	Reason   string
	Log      bool
	DM       bool
	DMReason string
	Action   Action
	Detector string
	// Deleted counts the messages queued for removal.
	Deleted    int
	Punishment roles.Result
}

type Module struct {
	cfg         config.SpamConfig
	ladder      Ladder
	window      *history.Window
	expressions Matcher
	deletions   Deletions
	punisher    Punisher
	logger      *zap.Logger
	metrics     *metrics.Metrics
	clock       Clock
}

func New(cfg config.SpamConfig, window *history.Window, expressions Matcher, deletions Deletions, punisher Punisher, logger *zap.Logger, m *metrics.Metrics) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		cfg:         cfg,
		ladder:      Ladder{Kick: cfg.KickThreshold, Mute: cfg.MuteThreshold, Ban: cfg.BanThreshold},
		window:      window,
		expressions: expressions,
		deletions:   deletions,
		punisher:    punisher,
		logger:      logger,
		metrics:     m,
		clock:       realClock{},
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// HandleMessage runs the checks in order and stops at the first violation.
func (m *Module) HandleMessage(ctx context.Context, in Input) (Verdict, bool) {
	msg := in.Message
	if in.Member.CanBypass {
		return Verdict{}, false
	}

	if len(msg.Attachments) > 0 && !m.attachmentsAllowed(msg.Attachments) {
		cleaned := m.deletions.MarkForDeletion(msg)
		return m.finish(in, Verdict{
			Reason:   "Filtered attachment",
			Log:      !cleaned,
			DM:       true,
			DMReason: "it contained a file type that is not allowed",
			Detector: DetectorAttachment,
			Deleted:  1,
		}), true
	}

	now := msg.SentAt
	if now.IsZero() {
		now = m.clock.Now()
	}
	content := utils.NormalizeContent(msg.Content)
	if in.Edit {
		m.window.RecordEdit(msg.ID, content)
	} else {
		m.window.Record(history.Entry{
			MessageID: msg.ID,
			GuildID:   msg.GuildID,
			AuthorID:  msg.AuthorID,
			ChannelID: msg.ChannelID,
			Content:   content,
			SentAt:    now,
		})
	}
	entries := m.window.Query(msg.AuthorID, msg.GuildID)

	pattern, hit := m.expressions.Match(content)

	if hit && !in.Edit {
		matched := within(entries, now, m.cfg.MaxBannedWordsInterval(), func(e history.Entry) bool {
			_, ok := m.expressions.Match(e.Content)
			return ok
		})
		if action := m.ladder.Action(len(matched)); action != ActionNone {
			return m.escalate(ctx, in, matched, action, DetectorBannedBurst,
				fmt.Sprintf("Sent %d messages with filtered expressions", len(matched))), true
		}
	}

	if hit {
		cleaned := m.deletions.MarkForDeletion(msg)
		return m.finish(in, Verdict{
			Reason:   fmt.Sprintf("Filtered expression `%s`", pattern),
			Log:      !cleaned,
			DM:       true,
			DMReason: "it contained a filtered expression",
			Detector: DetectorBannedWord,
			Deleted:  1,
		}), true
	}

	if in.Edit {
		return Verdict{}, false
	}

	burst := within(entries, now, m.cfg.MaxInterval(), nil)
	if action := m.ladder.Action(len(burst)); action != ActionNone {
		return m.escalate(ctx, in, burst, action, DetectorBurst,
			fmt.Sprintf("Sent %d messages within %s", len(burst), m.cfg.MaxInterval())), true
	}

	if content == "" {
		return Verdict{}, false
	}
	duplicates := within(entries, now, m.cfg.MaxDuplicatesInterval(), func(e history.Entry) bool {
		return e.Content == content
	})
	if action := m.ladder.Action(len(duplicates)); action != ActionNone {
		batch := mergeEntries(duplicates, trailingStreak(entries, content))
		return m.escalate(ctx, in, batch, action, DetectorDuplicates,
			fmt.Sprintf("Spammed %d same messages in a row", len(duplicates))), true
	}

	return Verdict{}, false
}

func (m *Module) attachmentsAllowed(attachments []chat.Attachment) bool {
	for _, attachment := range attachments {
		if attachment.IsImage() {
			continue
		}
		if !contains(m.cfg.AllowedExtensions, attachment.Extension()) {
			return false
		}
	}
	return true
}

func (m *Module) escalate(ctx context.Context, in Input, entries []history.Entry, action Action, detector, reason string) Verdict {
	batch := make([]chat.Message, 0, len(entries)+1)
	batch = append(batch, in.Message)
	for _, entry := range entries {
		if entry.MessageID == in.Message.ID {
			continue
		}
		batch = append(batch, chat.Message{
			ID:        entry.MessageID,
			GuildID:   entry.GuildID,
			ChannelID: entry.ChannelID,
			AuthorID:  entry.AuthorID,
		})
	}
	cleaned := m.deletions.MarkBatch(batch)

	verdict := Verdict{
		Reason:   reason,
		Log:      !cleaned,
		Action:   action,
		Detector: detector,
		Deleted:  len(batch),
	}
	verdict.Punishment = m.punish(ctx, in.Member, action, reason)
	return m.finish(in, verdict)
}

func (m *Module) punish(ctx context.Context, member chat.Member, action Action, reason string) roles.Result {
	switch action {
	case ActionBan:
		return m.punisher.Ban(ctx, member, reason)
	case ActionMute:
		return m.punisher.Mute(ctx, member)
	case ActionKick:
		return m.punisher.Kick(ctx, member, reason)
	}
	return roles.Result{}
}

func (m *Module) finish(in Input, verdict Verdict) Verdict {
	m.metrics.Verdict(verdict.Detector)
	m.logger.Info("message flagged",
		zap.String("guild_id", in.Message.GuildID),
		zap.String("channel_id", in.Message.ChannelID),
		zap.String("user_id", in.Message.AuthorID),
		zap.String("message_id", in.Message.ID),
		zap.String("detector", verdict.Detector),
		zap.String("action", string(verdict.Action)),
		zap.Int("deleted", verdict.Deleted),
		zap.Bool("edit", in.Edit),
	)
	return verdict
}

// within returns entries no older than interval before now, optionally
// filtered by keep.
func within(entries []history.Entry, now time.Time, interval time.Duration, keep func(history.Entry) bool) []history.Entry {
	var out []history.Entry
	for _, entry := range entries {
		if now.Sub(entry.SentAt) > interval {
			continue
		}
		if keep != nil && !keep(entry) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// trailingStreak walks newest to oldest and collects the run of entries whose
// content equals content, stopping at the first entry that differs.
func trailingStreak(entries []history.Entry, content string) []history.Entry {
	var out []history.Entry
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Content != content {
			break
		}
		out = append(out, entries[i])
	}
	return out
}

func mergeEntries(a, b []history.Entry) []history.Entry {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]history.Entry, 0, len(a)+len(b))
	for _, list := range [][]history.Entry{a, b} {
		for _, entry := range list {
			if _, ok := seen[entry.MessageID]; ok {
				continue
			}
			seen[entry.MessageID] = struct{}{}
			out = append(out, entry)
		}
	}
	return out
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

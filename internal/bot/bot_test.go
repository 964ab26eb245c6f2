package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestDMThrottle(t *testing.T) {
	throttle := newDMThrottle(5 * time.Second)
	now := time.Unix(1_700_000_000, 0)

	if !throttle.AllowAt("u1", now) {
		t.Fatalf("first DM should be allowed")
	}
	if throttle.AllowAt("u1", now.Add(time.Second)) {
		t.Fatalf("second DM within cooldown should be throttled")
	}
	if !throttle.AllowAt("u2", now.Add(time.Second)) {
		t.Fatalf("other users are throttled independently")
	}
	if !throttle.AllowAt("u1", now.Add(6*time.Second)) {
		t.Fatalf("DM after cooldown should be allowed")
	}
}

func TestDMThrottlePrune(t *testing.T) {
	throttle := newDMThrottle(5 * time.Second)
	now := time.Unix(1_700_000_000, 0)
	throttle.AllowAt("u1", now)

	if removed := throttle.Prune(now.Add(time.Second)); removed != 0 {
		t.Fatalf("limiter still cooling down, removed %d", removed)
	}
	if removed := throttle.Prune(now.Add(10 * time.Second)); removed != 1 {
		t.Fatalf("expected refilled limiter pruned, removed %d", removed)
	}
}

func TestDMThrottleDisabled(t *testing.T) {
	throttle := newDMThrottle(0)
	now := time.Now()
	if !throttle.AllowAt("u1", now) || !throttle.AllowAt("u1", now) {
		t.Fatalf("zero cooldown never throttles")
	}
}

func TestEvery(t *testing.T) {
	if got := every(30 * time.Minute); got != "@every 30m0s" {
		t.Fatalf("unexpected schedule %q", got)
	}
}

func TestFormatFilterList(t *testing.T) {
	if got := formatFilterList(nil); got != "No filters." {
		t.Fatalf("unexpected empty list %q", got)
	}
	if got := formatFilterList([]string{`a`, `b\.c`}); got != "`a`\n`b\\.c`" {
		t.Fatalf("unexpected list %q", got)
	}

	var many []string
	for i := 0; i < 500; i++ {
		many = append(many, strings.Repeat("x", 20))
	}
	got := formatFilterList(many)
	if len(got) > maxReply+50 || !strings.Contains(got, "more") {
		t.Fatalf("expected truncated list, got %d chars", len(got))
	}
}

func TestToChatMessage(t *testing.T) {
	sent := time.Unix(1_700_000_000, 0)
	msg := &discordgo.Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   "hello",
		Timestamp: sent,
		Author:    &discordgo.User{ID: "u1", Username: "user", Discriminator: "0001"},
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "shot.png", URL: "https://cdn/shot.png", Width: 10, Height: 20},
			nil,
		},
	}
	got := toChatMessage(msg)
	if got.ID != "m1" || got.AuthorID != "u1" || got.AuthorTag != "user#0001" || !got.SentAt.Equal(sent) {
		t.Fatalf("unexpected message %+v", got)
	}
	if len(got.Attachments) != 1 || !got.Attachments[0].IsImage() {
		t.Fatalf("unexpected attachments %+v", got.Attachments)
	}
}

func TestToChatMemberUsesMemberUser(t *testing.T) {
	member := &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "user", Discriminator: "0001"}, Roles: []string{"r1"}}
	got := toChatMember("g1", nil, member)
	if got.UserID != "u1" || got.GuildID != "g1" || !got.HasRoleID("r1") {
		t.Fatalf("unexpected member %+v", got)
	}
}

func TestFindChannel(t *testing.T) {
	channels := []*discordgo.Channel{
		{ID: "v1", Name: "mod-logs", Type: discordgo.ChannelTypeGuildVoice},
		nil,
		{ID: "t1", Name: "Mod-Logs", Type: discordgo.ChannelTypeGuildText},
	}
	if got := findChannel(channels, "mod-logs"); got != "t1" {
		t.Fatalf("expected text channel, got %q", got)
	}
	if got := findChannel(channels, "server-logs"); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

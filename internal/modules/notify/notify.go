// Package notify renders moderation-log and direct-message text. Nothing in
// here has side effects.
package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"warden/internal/modules/antispam"
	"warden/internal/modules/roles"
)

// maxQuoted keeps quoted message content well inside the 2000 character
// message limit.
const maxQuoted = 1500

type User struct {
	ID  string
	Tag string
}

// UserDetail is the stable reference used in every log line: the human tag
// plus a mention and the raw id, which survives renames.
func UserDetail(user User) string {
	return fmt.Sprintf("**%s** (<@%s>, `%s`)", user.Tag, user.ID, user.ID)
}

func ModLogLine(verdict antispam.Verdict, user User, channelID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":no_entry_sign: Removed %s from %s in <#%s>: %s", messages(verdict.Deleted), UserDetail(user), channelID, verdict.Reason)
	if verdict.Action != antispam.ActionNone {
		b.WriteString("\n")
		b.WriteString(ActionLine(verdict.Action, user, verdict.Punishment))
	}
	return b.String()
}

// DMLine returns the message sent to the author, or "" when the verdict does
// not warrant one.
func DMLine(verdict antispam.Verdict, channelID string) string {
	if !verdict.DM {
		return ""
	}
	reason := verdict.DMReason
	if reason == "" {
		reason = strings.ToLower(verdict.Reason)
	}
	return fmt.Sprintf("Your message in <#%s> was removed because %s.", channelID, reason)
}

func ActionLine(action antispam.Action, user User, result roles.Result) string {
	if !result.OK() && result.Outcome != "" {
		return fmt.Sprintf(":warning: Could not %s %s: %s", action, UserDetail(user), result.Detail)
	}
	switch action {
	case antispam.ActionKick:
		return fmt.Sprintf(":boot: %s was kicked.", UserDetail(user))
	case antispam.ActionMute:
		return fmt.Sprintf(":mute: %s was muted.", UserDetail(user))
	case antispam.ActionBan:
		return fmt.Sprintf(":hammer: %s was banned.", UserDetail(user))
	}
	return ""
}

// RoleLine reports a manual role change, e.g. "muted" or "unmuted".
func RoleLine(verb string, user User, moderatorTag string) string {
	return fmt.Sprintf(":mute: %s was %s by **%s**.", UserDetail(user), verb, moderatorTag)
}

// DeletedLine reports a deletion the bot did not cause.
func DeletedLine(user User, channelID, content string) string {
	line := fmt.Sprintf(":wastebasket: Message from %s was deleted in <#%s>", UserDetail(user), channelID)
	content = strings.TrimSpace(content)
	if content == "" {
		return line + "."
	}
	return line + ":\n>>> " + truncate(content, maxQuoted)
}

// BulkDeletedLine reports a bulk deletion the bot did not cause.
func BulkDeletedLine(count int, channelID string) string {
	return fmt.Sprintf(":wastebasket: %s were bulk deleted in <#%s>.", messages(count), channelID)
}

func messages(n int) string {
	if n == 1 {
		return "1 message"
	}
	return fmt.Sprintf("%d messages", n)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

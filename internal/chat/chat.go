// Package chat holds the narrow message and member shapes the moderation
// pipeline consumes, so the pipeline does not depend on the gateway SDK.
package chat

import (
	"path"
	"strings"
	"time"
)

type Attachment struct {
	Filename string
	URL      string
	Width    int
	Height   int
}

// IsImage reports whether the gateway measured the attachment as an image.
func (a Attachment) IsImage() bool {
	return a.Width > 0 && a.Height > 0
}

// Extension returns the lower-cased extension of the filename, or of the URL
// path when the filename is empty.
func (a Attachment) Extension() string {
	name := a.Filename
	if name == "" {
		name = a.URL
		if idx := strings.IndexAny(name, "?#"); idx >= 0 {
			name = name[:idx]
		}
	}
	return strings.ToLower(path.Ext(name))
}

type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorTag   string
	Content     string
	Attachments []Attachment
	SentAt      time.Time
}

// Member is a guild member as seen by the role actuator.
type Member struct {
	GuildID string
	UserID  string
	Tag     string
	RoleIDs []string
	// CanBypass is set when the member holds the manage-messages permission.
	CanBypass bool
}

func (m Member) HasRoleID(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

package bot

import (
	"warden/internal/chat"
	"warden/internal/modules/roles"

	"github.com/bwmarrin/discordgo"
)

// sessionAPI narrows the session to the calls the deletion coordinator and
// role actuator make.
type sessionAPI struct {
	session *discordgo.Session
}

func (a *sessionAPI) DeleteMessage(channelID, messageID string) error {
	return a.session.ChannelMessageDelete(channelID, messageID)
}

func (a *sessionAPI) BulkDeleteMessages(channelID string, messageIDs []string) error {
	return a.session.ChannelMessagesBulkDelete(channelID, messageIDs)
}

func (a *sessionAPI) GuildRoles(guildID string) ([]roles.Role, error) {
	var guildRoles []*discordgo.Role
	if guild, err := a.session.State.Guild(guildID); err == nil && guild != nil && len(guild.Roles) > 0 {
		guildRoles = guild.Roles
	} else {
		fetched, err := a.session.GuildRoles(guildID)
		if err != nil {
			return nil, err
		}
		guildRoles = fetched
	}
	out := make([]roles.Role, 0, len(guildRoles))
	for _, role := range guildRoles {
		if role == nil {
			continue
		}
		out = append(out, roles.Role{ID: role.ID, Name: role.Name})
	}
	return out, nil
}

func (a *sessionAPI) AddMemberRole(guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (a *sessionAPI) RemoveMemberRole(guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (a *sessionAPI) Kick(guildID, userID, reason string) error {
	return a.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (a *sessionAPI) Ban(guildID, userID, reason string) error {
	return a.session.GuildBanCreateWithReason(guildID, userID, reason, 1)
}

func toChatMessage(msg *discordgo.Message) chat.Message {
	out := chat.Message{
		ID:        msg.ID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
		SentAt:    msg.Timestamp,
	}
	if msg.Author != nil {
		out.AuthorID = msg.Author.ID
		out.AuthorTag = msg.Author.String()
	}
	for _, attachment := range msg.Attachments {
		if attachment == nil {
			continue
		}
		out.Attachments = append(out.Attachments, chat.Attachment{
			Filename: attachment.Filename,
			URL:      attachment.URL,
			Width:    attachment.Width,
			Height:   attachment.Height,
		})
	}
	return out
}

// toChatMember builds a member from whatever the event carried; the member
// payload on messages has no user, so user is passed separately.
func toChatMember(guildID string, user *discordgo.User, member *discordgo.Member) chat.Member {
	out := chat.Member{GuildID: guildID}
	if member != nil {
		out.RoleIDs = append(out.RoleIDs, member.Roles...)
		if user == nil {
			user = member.User
		}
	}
	if user != nil {
		out.UserID = user.ID
		out.Tag = user.String()
	}
	return out
}

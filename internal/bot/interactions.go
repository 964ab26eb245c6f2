package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/chat"
	"warden/internal/modules/expressions"
	"warden/internal/modules/notify"
	"warden/internal/modules/roles"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorAction = 0x3498db
	colorError  = 0xe74c3c
	// maxReply leaves room under the 2000 character message limit.
	maxReply = 1900
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" || interaction.Member == nil {
		b.respond(session, interaction, "You need to be in a guild channel for this command to work", true)
		return
	}
	if interaction.Member.Permissions&discordgo.PermissionManageMessages == 0 {
		b.respond(session, interaction, "You can't run this command", true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "filter":
		b.handleFilterCommand(ctx, session, interaction, data.Options)
	case "Mute":
		b.handleMuteCommand(ctx, session, interaction, data)
	}
}

func (b *Bot) handleFilterCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	value := ""
	for _, opt := range sub.Options {
		if opt.Name == "regex" {
			value = opt.StringValue()
		}
	}

	switch sub.Name {
	case "add":
		if err := b.expressions.Add(ctx, value); err != nil {
			b.logger.Warn("filter add failed", zap.String("pattern", value), zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed("Filter", fmt.Sprintf("Failed to add filter `%s`: %v", value, err), colorError, nil), true)
			return
		}
		reply := fmt.Sprintf("Successfully added filter `%s`", value)
		if err := expressions.Validate(value); err != nil {
			reply += fmt.Sprintf("\nWarning: it does not compile and will not match anything (%v)", err)
		}
		b.respond(session, interaction, reply, true)
	case "del":
		if err := b.expressions.Remove(ctx, value); err != nil {
			b.logger.Warn("filter remove failed", zap.String("pattern", value), zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed("Filter", fmt.Sprintf("Failed to remove filter `%s`: %v", value, err), colorError, nil), true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Successfully removed filter `%s`", value), true)
	case "ls":
		patterns, err := b.expressions.List(ctx)
		if err != nil {
			b.logger.Warn("filter list failed", zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed("Filter", "Failed to list filters", colorError, nil), true)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Filters", formatFilterList(patterns), colorAction, nil), true)
	}
}

// formatFilterList renders one pattern per line, cut to fit a single reply.
func formatFilterList(patterns []string) string {
	if len(patterns) == 0 {
		return "No filters."
	}
	var b strings.Builder
	for i, pattern := range patterns {
		line := "`" + pattern + "`\n"
		if b.Len()+len(line) > maxReply {
			fmt.Fprintf(&b, "… and %d more", len(patterns)-i)
			break
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// handleMuteCommand toggles the muted role on the target member.
func (b *Bot) handleMuteCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target, ok := b.interactionTarget(interaction.GuildID, data)
	if !ok {
		b.respond(session, interaction, "Member not found", true)
		return
	}
	moderatorTag := ""
	if interaction.Member.User != nil {
		moderatorTag = interaction.Member.User.String()
	}

	muted, err := b.roles.HasRole(target, b.roles.MutedRole())
	if err != nil {
		b.logger.Warn("role lookup failed", zap.String("guild_id", target.GuildID), zap.Error(err))
		b.respond(session, interaction, fmt.Sprintf("Failed to look up roles: %v", err), true)
		return
	}

	verb := "muted"
	var result roles.Result
	if muted {
		verb = "unmuted"
		result = b.roles.Remove(ctx, target, b.roles.MutedRole())
	} else {
		result = b.roles.Mute(ctx, target)
	}
	if !result.OK() {
		b.respond(session, interaction, result.Detail, true)
		return
	}

	user := notify.User{ID: target.UserID, Tag: target.Tag}
	b.audit.Moderation(ctx, target.GuildID, target.UserID, "manual_"+verb, notify.RoleLine(verb, user, moderatorTag))
	b.respond(session, interaction, fmt.Sprintf("%s was %s.", notify.UserDetail(user), verb), true)
}

func (b *Bot) interactionTarget(guildID string, data discordgo.ApplicationCommandInteractionData) (chat.Member, bool) {
	if data.TargetID == "" {
		return chat.Member{}, false
	}
	if data.Resolved != nil {
		if member, ok := data.Resolved.Members[data.TargetID]; ok && member != nil {
			return toChatMember(guildID, data.Resolved.Users[data.TargetID], member), true
		}
	}
	member := b.memberForUser(guildID, data.TargetID)
	if member == nil {
		return chat.Member{}, false
	}
	return toChatMember(guildID, member.User, member), true
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
	}
}

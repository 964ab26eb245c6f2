package bot

import (
	"context"

	"warden/internal/modules/antispam"
	"warden/internal/modules/notify"
	"warden/internal/modules/roles"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Message == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	b.classify(context.Background(), msg.Message, false)
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, msg *discordgo.MessageUpdate) {
	// embed unfurls arrive as updates without an author
	if msg.Message == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	b.classify(context.Background(), msg.Message, true)
}

func (b *Bot) classify(ctx context.Context, msg *discordgo.Message, edit bool) {
	member := toChatMember(msg.GuildID, msg.Author, msg.Member)
	member.CanBypass = b.canBypass(msg.Author.ID, msg.ChannelID)
	in := antispam.Input{Message: toChatMessage(msg), Member: member, Edit: edit}

	verdict, flagged := b.antispam.HandleMessage(ctx, in)
	b.metrics.WindowSize(b.window.Len())
	if !flagged {
		return
	}

	user := notify.User{ID: member.UserID, Tag: member.Tag}
	if verdict.Log {
		b.audit.Moderation(ctx, msg.GuildID, member.UserID, "filter_"+verdict.Detector, notify.ModLogLine(verdict, user, msg.ChannelID))
	}
	if verdict.DM {
		b.sendDM(member.UserID, notify.DMLine(verdict, msg.ChannelID))
	}
}

func (b *Bot) onMessageDelete(session *discordgo.Session, event *discordgo.MessageDelete) {
	if event.Message == nil || event.GuildID == "" {
		return
	}
	if b.deletions.IsOurDeletion(event.ID) {
		return
	}
	before := event.BeforeDelete
	if before == nil || before.Author == nil {
		b.logger.Debug("deleted message not cached", zap.String("channel_id", event.ChannelID), zap.String("message_id", event.ID))
		return
	}
	if before.Author.Bot {
		return
	}
	user := notify.User{ID: before.Author.ID, Tag: before.Author.String()}
	b.audit.Server(context.Background(), event.GuildID, before.Author.ID, "message_deleted", notify.DeletedLine(user, event.ChannelID, before.Content))
}

func (b *Bot) onMessageDeleteBulk(session *discordgo.Session, event *discordgo.MessageDeleteBulk) {
	if event.GuildID == "" {
		return
	}
	count := 0
	for _, id := range event.Messages {
		if !b.deletions.IsOurDeletion(id) {
			count++
		}
	}
	if count == 0 {
		return
	}
	b.audit.Server(context.Background(), event.GuildID, "", "messages_bulk_deleted", notify.BulkDeletedLine(count, event.ChannelID))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.GuildID == "" {
		return
	}
	ctx := context.Background()
	member := toChatMember(event.GuildID, event.User, event.Member)
	for _, result := range b.roles.EnsureRoles(ctx, member) {
		if result.Outcome == roles.OutcomeOK {
			continue
		}
		b.logger.Info("sticky role not restored", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.String("outcome", string(result.Outcome)), zap.String("detail", result.Detail))
	}
}

func (b *Bot) onGuildMemberUpdate(session *discordgo.Session, event *discordgo.GuildMemberUpdate) {
	if event.Member == nil || event.GuildID == "" {
		return
	}
	member := toChatMember(event.GuildID, event.User, event.Member)
	if err := b.roles.SyncSticky(context.Background(), member); err != nil {
		b.logger.Warn("sticky role sync failed", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.Error(err))
	}
}

package bot

import (
	"context"
	"fmt"
	"strings"

	"warden/internal/config"
	"warden/internal/metrics"
	"warden/internal/modules/antispam"
	"warden/internal/modules/audit"
	"warden/internal/modules/deletion"
	"warden/internal/modules/expressions"
	"warden/internal/modules/history"
	"warden/internal/modules/roles"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// messageCacheSize lets delete events carry the deleted message's author and
// content.
const messageCacheSize = 200

type Bot struct {
	cfg         config.Config
	logger      *zap.Logger
	store       *storage.Store
	audit       *audit.Logger
	metrics     *metrics.Metrics
	session     *discordgo.Session
	expressions *expressions.Store
	window      *history.Window
	deletions   *deletion.Coordinator
	roles       *roles.Actuator
	antispam    *antispam.Module
	dm          *dmThrottle
	cron        *cron.Cron
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, m *metrics.Metrics) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	session.State.MaxMessageCount = messageCacheSize

	api := &sessionAPI{session: session}
	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		audit:       auditLogger,
		metrics:     m,
		session:     session,
		expressions: expressions.New(store, logger),
		window:      history.NewWindow(),
		dm:          newDMThrottle(cfg.Notifications.DMCooldown()),
	}
	b.deletions = deletion.New(api, cfg.Spam.DeletionHorizon(), logger, m)
	b.roles = roles.New(api, store, roles.Policy{Bad: cfg.Roles.Bad, Good: cfg.Roles.Good}, cfg.Roles.Muted, logger, m)
	b.antispam = antispam.New(cfg.Spam, b.window, b.expressions, b.deletions, b.roles, logger, m)

	if b.audit != nil {
		b.audit.SetNotifier(b.notifyAudit)
	}
	return b, nil
}

func (b *Bot) Start(ctx context.Context) error {
	if err := b.expressions.Seed(ctx, b.cfg.Spam.DefaultExpressions); err != nil {
		return fmt.Errorf("seed expressions: %w", err)
	}

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onMessageDeleteBulk)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	return b.startMaintenance()
}

func (b *Bot) Close(ctx context.Context) {
	if b.cron != nil {
		<-b.cron.Stop().Done()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
	if err := b.deletions.Wait(ctx); err != nil {
		b.logger.Warn("pending deletions abandoned", zap.Error(err))
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

// notifyAudit posts an audit entry to the guild channel its sink names.
func (b *Bot) notifyAudit(ctx context.Context, entry audit.Entry) {
	name := b.cfg.Channels.ModerationLogs
	if entry.Sink == audit.SinkServer {
		name = b.cfg.Channels.ServerLogs
	}
	channelID := b.channelByName(entry.GuildID, name)
	if channelID == "" {
		b.logger.Debug("log channel not found", zap.String("guild_id", entry.GuildID), zap.String("channel", name))
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, entry.Details); err != nil {
		b.logger.Warn("log channel send failed", zap.String("guild_id", entry.GuildID), zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (b *Bot) channelByName(guildID, name string) string {
	if guildID == "" || name == "" {
		return ""
	}
	var channels []*discordgo.Channel
	if guild, err := b.session.State.Guild(guildID); err == nil && guild != nil {
		channels = guild.Channels
	}
	if len(channels) == 0 {
		fetched, err := b.session.GuildChannels(guildID)
		if err != nil {
			b.logger.Warn("guild channels lookup failed", zap.String("guild_id", guildID), zap.Error(err))
			return ""
		}
		channels = fetched
	}
	return findChannel(channels, name)
}

func findChannel(channels []*discordgo.Channel, name string) string {
	for _, channel := range channels {
		if channel != nil && channel.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(channel.Name, name) {
			return channel.ID
		}
	}
	return ""
}

func (b *Bot) sendDM(userID, content string) {
	if content == "" || !b.cfg.Notifications.DMEnabled {
		return
	}
	if !b.dm.Allow(userID) {
		b.logger.Debug("dm throttled", zap.String("user_id", userID))
		return
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		b.logger.Warn("dm channel create failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if _, err := b.session.ChannelMessageSend(channel.ID, content); err != nil {
		b.logger.Warn("dm send failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

// canBypass reports whether the user holds manage-messages in the channel.
func (b *Bot) canBypass(userID, channelID string) bool {
	perms, err := b.session.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = b.session.UserChannelPermissions(userID, channelID)
		if err != nil {
			b.logger.Debug("permission lookup failed", zap.String("user_id", userID), zap.String("channel_id", channelID), zap.Error(err))
			return false
		}
	}
	return perms&discordgo.PermissionManageMessages != 0
}

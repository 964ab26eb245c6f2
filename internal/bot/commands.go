package bot

import "github.com/bwmarrin/discordgo"

var manageMessages int64 = discordgo.PermissionManageMessages

func commandDefinitions() []*discordgo.ApplicationCommand {
	regexOption := func(description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "regex",
			Description: description,
			Required:    true,
		}
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "filter",
			Description:              "Message filter management",
			DefaultMemberPermissions: &manageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Adds new filter",
					Options:     []*discordgo.ApplicationCommandOption{regexOption("Regex pattern for matching messages")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "del",
					Description: "Removes filter",
					Options:     []*discordgo.ApplicationCommandOption{regexOption("Regex pattern for matching messages")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "ls",
					Description: "Lists filters",
				},
			},
		},
		{
			Name:                     "Mute",
			Type:                     discordgo.UserApplicationCommand,
			DefaultMemberPermissions: &manageMessages,
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Mayerch1/IncidentBot/internal/engine"
	"github.com/Mayerch1/IncidentBot/internal/storage"
)

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "report",
			Description: "Report a race incident (continues in your DMs)",
		},
		{
			Name:        "cancel",
			Description: "Cancel the incident ticket of this channel",
		},
		{
			Name:                     "incident-setup",
			Description:              "Configure incident handling for this server",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "category",
					Description: "Category to create incident channels under",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildCategory,
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "steward_role",
					Description: "Role whose members act as stewards",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "summary_channel",
					Description: "Channel to publish closed-incident summaries to",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "log_channel",
					Description: "Channel to archive incident transcripts to",
					Required:    false,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// handleSetup handles the /incident-setup command
func (b *Bot) handleSetup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		respondWithMessage(s, i, "This command only works inside a server.")
		return
	}

	var categoryID, stewardRoleID, summaryChannelID, logChannelID string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "category":
			categoryID = opt.ChannelValue(nil).ID
		case "steward_role":
			stewardRoleID = opt.RoleValue(nil, i.GuildID).ID
		case "summary_channel":
			summaryChannelID = opt.ChannelValue(nil).ID
		case "log_channel":
			logChannelID = opt.ChannelValue(nil).ID
		}
	}

	if err := b.applySetup(i.GuildID, categoryID, stewardRoleID, summaryChannelID, logChannelID); err != nil {
		slog.Error("Failed to store setup", "guild", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to store the configuration. Please try again.")
		return
	}

	respondWithMessage(s, i, "Incident handling is configured. Drivers can now use `/report`.")
}

func (b *Bot) applySetup(guildID, categoryID, stewardRoleID, summaryChannelID, logChannelID string) error {
	if err := b.repo.SetIncidentCategory(guildID, categoryID); err != nil {
		return err
	}
	if err := b.repo.SetStewardRole(guildID, stewardRoleID); err != nil {
		return err
	}
	if err := b.repo.SetSummaryChannel(guildID, summaryChannelID); err != nil {
		return err
	}
	if logChannelID != "" {
		return b.repo.SetLogChannel(guildID, logChannelID)
	}
	return nil
}

// handleCancel handles the /cancel command inside an incident channel
func (b *Bot) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil {
		respondWithMessage(s, i, "This command only works inside a server.")
		return
	}

	inc, err := b.repo.GetIncident(i.ChannelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithMessage(s, i, "This channel is not an incident ticket.")
			return
		}
		slog.Error("Failed to load incident", "channel", i.ChannelID, "error", err)
		respondWithMessage(s, i, "Something went wrong. Please try again.")
		return
	}

	settings, err := b.repo.GetSettings(inc.GuildID)
	if err != nil {
		slog.Error("Failed to load guild settings", "guild", inc.GuildID, "error", err)
		respondWithMessage(s, i, "Something went wrong. Please try again.")
		return
	}

	actor := engine.Actor{
		UserID:    i.Member.User.ID,
		IsSteward: b.roles.HasRole(inc.GuildID, i.Member.User.ID, settings.StewardRoleID),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch err := b.eng.Cancel(ctx, i.ChannelID, actor); {
	case err == nil:
		respondWithMessage(s, i, "The incident was cancelled and will be deleted soon.")
	case errors.Is(err, engine.ErrUnauthorized):
		respondWithMessage(s, i, "You can no longer cancel this incident. Ask a steward to cancel it for you.")
	case errors.Is(err, engine.ErrInvalidStage):
		respondWithMessage(s, i, "This incident is already closed.")
	default:
		slog.Error("Failed to cancel incident", "channel", i.ChannelID, "error", err)
		respondWithMessage(s, i, "Something went wrong. Please try again.")
	}
}

// Helper functions

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

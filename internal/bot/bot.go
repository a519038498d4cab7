package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Mayerch1/IncidentBot/internal/config"
	"github.com/Mayerch1/IncidentBot/internal/engine"
	"github.com/Mayerch1/IncidentBot/internal/report"
	"github.com/Mayerch1/IncidentBot/internal/storage"
	"github.com/Mayerch1/IncidentBot/internal/sweeper"
	"github.com/Mayerch1/IncidentBot/internal/transport"
)

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	repo     *storage.Repository
	msgr     transport.Messenger
	roles    transport.RoleChecker
	prompter transport.Prompter
	eng      *engine.Engine
	sweeper  *sweeper.Sweeper
	commands []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	msgr := transport.NewDiscord(session)
	prompter := transport.NewDiscordPrompter(session, msgr)

	timeouts := engine.DefaultTimeouts()
	timeouts.StewardStatement = time.Duration(cfg.StewardResponseHours) * time.Hour
	timeouts.Discussion = time.Duration(cfg.DiscussionTimeoutHours) * time.Hour
	timeouts.ClosedRetention = time.Duration(cfg.ClosedRetentionHours) * time.Hour

	eng := engine.New(engine.Config{
		Repo:        repo,
		Messenger:   msgr,
		Prompter:    prompter,
		Roles:       msgr,
		Renderer:    report.Embeds{},
		Transcriber: report.NewHTMLTranscriber(session),
		Timeouts:    timeouts,
	})

	b := &Bot{
		config:   cfg,
		session:  session,
		repo:     repo,
		msgr:     msgr,
		roles:    msgr,
		prompter: prompter,
		eng:      eng,
	}

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the timeout sweeper
	b.sweeper = sweeper.New(b.repo, b.eng, b.msgr, b.config.SweepSchedule)
	if err := b.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the sweeper
	if b.sweeper != nil {
		b.sweeper.Stop()
	}

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleMessage)
	b.session.AddHandler(b.handleReaction)
	b.session.AddHandler(b.handleGuildDelete)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "report":
		b.handleReport(s, i)
	case "cancel":
		b.handleCancel(s, i)
	case "incident-setup":
		b.handleSetup(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}

// handleMessage feeds channel activity into the engine. Every message in an
// incident channel refreshes the idle clock; messages by the gated party in
// a proof stage additionally satisfy the evidence gate.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if err := b.eng.NoteMessage(m.ChannelID, m.Author.ID); err != nil {
		slog.Error("Failed to record channel activity", "channel", m.ChannelID, "error", err)
	}
}

// handleReaction maps control reactions in incident channels onto engine
// operations. Unauthorized or out-of-stage reactions are dropped silently.
func (b *Bot) handleReaction(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if s.State != nil && s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}

	emoji := r.Emoji.Name
	if emoji != engine.EmojiAdvance && emoji != engine.EmojiRevert &&
		emoji != engine.EmojiLock && emoji != engine.EmojiEdit {
		return
	}

	inc, err := b.repo.GetIncident(r.ChannelID)
	if err != nil {
		return
	}
	settings, err := b.repo.GetSettings(inc.GuildID)
	if err != nil {
		slog.Error("Failed to load guild settings", "guild", inc.GuildID, "error", err)
		return
	}

	actor := engine.Actor{
		UserID:    r.UserID,
		IsSteward: b.roles.HasRole(inc.GuildID, r.UserID, settings.StewardRoleID),
	}

	// The advance path can block on the verdict solicitation, the edit path
	// on a DM conversation. Neither may stall the gateway event loop.
	go b.dispatchReaction(r.ChannelID, emoji, actor)
}

func (b *Bot) dispatchReaction(channelID, emoji string, actor engine.Actor) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	var err error
	switch emoji {
	case engine.EmojiAdvance:
		err = b.eng.Advance(ctx, channelID, actor, engine.TriggerManual)
	case engine.EmojiRevert:
		err = b.eng.Revert(ctx, channelID, actor)
	case engine.EmojiLock:
		err = b.eng.Close(ctx, channelID, actor, engine.TriggerManual)
	case engine.EmojiEdit:
		err = b.eng.EditOutcome(ctx, channelID, actor)
	}

	switch {
	case err == nil:
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrInvalidStage),
		errors.Is(err, engine.ErrEvidenceMissing),
		errors.Is(err, engine.ErrRevertRefused):
		slog.Debug("Reaction dropped", "channel", channelID, "emoji", emoji, "reason", err)
	default:
		slog.Error("Reaction handling failed", "channel", channelID, "emoji", emoji, "error", err)
	}
}

// handleGuildDelete wipes all state of a guild that kicked the bot.
func (b *Bot) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		// outage, not a removal
		return
	}
	if err := b.repo.DeleteGuild(g.ID); err != nil {
		slog.Error("Failed to wipe guild data", "guild", g.ID, "error", err)
		return
	}
	slog.Info("Guild data wiped", "guild", g.ID)
}

package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/Mayerch1/IncidentBot/internal/storage"
)

func uploadSolutionsEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Recommended Upload Solutions",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Streamable", Value: "[choose for fast and simple upload](https://streamable.com)"},
			{Name: "Youtube", Value: "[choose for more control over your upload](https://youtube.com)"},
		},
	}
}

func pollEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Poll",
		Description: "Vote if you think this incident should be punished or not",
		Footer: &discordgo.MessageEmbedFooter{
			Text: "This is only to get a general mood of the stewards. The decision is in no way bound by this poll",
		},
	}
}

// applyMatrix flips the channel write permissions for the target state.
// Failures are logged and swallowed; a degraded channel must not block the
// workflow.
func (e *Engine) applyMatrix(ctx context.Context, inc *storage.Incident, next storage.State) {
	m := matrixFor(next)
	if err := e.msgr.SetMemberWrite(ctx, inc.ChannelID, inc.Victim.UserID, m.victim); err != nil {
		slog.Warn("Failed to update victim permissions", "channel", inc.ChannelID, "error", err)
	}
	if err := e.msgr.SetMemberWrite(ctx, inc.ChannelID, inc.Offender.UserID, m.offender); err != nil {
		slog.Warn("Failed to update offender permissions", "channel", inc.ChannelID, "error", err)
	}
}

// postPrompt posts one prompt message with optional reactions, returning its
// id. ok is false when the post itself failed.
func (e *Engine) postPrompt(ctx context.Context, channelID, content string, reactions ...string) (string, bool) {
	id, err := e.msgr.Post(ctx, channelID, content)
	if err != nil {
		slog.Warn("Failed to post prompt", "channel", channelID, "error", err)
		return "", false
	}
	for _, emoji := range reactions {
		if err := e.msgr.AddReaction(ctx, channelID, id, emoji); err != nil {
			slog.Warn("Failed to add reaction", "channel", channelID, "error", err)
		}
	}
	return id, true
}

// postEmbedPrompt is postPrompt for embeds.
func (e *Engine) postEmbedPrompt(ctx context.Context, channelID string, embed *discordgo.MessageEmbed, reactions ...string) (string, bool) {
	id, err := e.msgr.PostEmbed(ctx, channelID, embed)
	if err != nil {
		slog.Warn("Failed to post embed prompt", "channel", channelID, "error", err)
		return "", false
	}
	for _, emoji := range reactions {
		if err := e.msgr.AddReaction(ctx, channelID, id, emoji); err != nil {
			slog.Warn("Failed to add reaction", "channel", channelID, "error", err)
		}
	}
	return id, true
}

// postEntryPrompts posts the prompts a stage presents on entry and returns
// the ids of the posted messages for the cleanup queue.
func (e *Engine) postEntryPrompts(ctx context.Context, inc *storage.Incident, settings *storage.GuildSettings, next storage.State) []string {
	var ids []string
	add := func(id string, ok bool) {
		if ok {
			ids = append(ids, id)
		}
	}
	ch := inc.ChannelID

	switch next {
	case storage.StateVictimStatement:
		add(e.postPrompt(ctx, ch, fmt.Sprintf(
			"<@%s> Please take 1 or 2 paragraphs to state what happened, what effect it had on your race "+
				"and why you think it is a punishable behaviour (do not post links to footage yet)",
			inc.Victim.UserID)))
		add(e.postPrompt(ctx, ch, "React with ⏩ once you stated all points", EmojiAdvance))

	case storage.StateVictimProof:
		add(e.postPrompt(ctx, ch, fmt.Sprintf("<@%s> Please upload the proof of the incident", inc.Victim.UserID)))
		add(e.postPrompt(ctx, ch, "If possible you should provide the 1st person- and the chase-camera for both cars."))
		add(e.postEmbedPrompt(ctx, ch, uploadSolutionsEmbed()))
		add(e.postPrompt(ctx, ch, "React with ⏩ once you added all proof", EmojiAdvance))

	case storage.StateOffenderStatement:
		add(e.postPrompt(ctx, ch, fmt.Sprintf(
			"<@%s> Please state your point of view and any other comments you want to add",
			inc.Offender.UserID)))
		add(e.postPrompt(ctx, ch, "React with ⏩ once you stated your points", EmojiAdvance))

	case storage.StateOffenderProof:
		add(e.postPrompt(ctx, ch, fmt.Sprintf("<@%s> Upload additional proof if you have some", inc.Offender.UserID)))
		add(e.postEmbedPrompt(ctx, ch, uploadSolutionsEmbed()))
		add(e.postPrompt(ctx, ch, "React with ⏩ once you added all proof", EmojiAdvance))

	case storage.StateStewardStatement:
		add(e.postEmbedPrompt(ctx, ch, pollEmbed(), "✅", "❌"))
		add(e.postPrompt(ctx, ch, fmt.Sprintf(
			"<@&%s> please have a look at this incident and state your judgement.",
			settings.StewardRoleID)))
		add(e.postPrompt(ctx, ch,
			"React with ⏩ once the final steward statement is issued. "+
				"You can allow both parties to respond to your statement", EmojiAdvance))

	case storage.StateDiscussion:
		add(e.postPrompt(ctx, ch, fmt.Sprintf(
			"<@&%s> you can close (🔒) the incident at any point or modify the outcome (🔧) by reacting to it.",
			settings.StewardRoleID)))
		add(e.postEmbedPrompt(ctx, ch, e.renderer.IncidentSummary(inc, inc.Title), EmojiLock, EmojiEdit))
		add(e.postPrompt(ctx, ch, fmt.Sprintf(
			"<@%s>, <@%s> please review the stewards statement. "+
				"You can respond to the judgement until the incident is locked by a steward.",
			inc.Victim.UserID, inc.Offender.UserID)))

	case storage.StateClosed:
		add(e.postPrompt(ctx, ch, "The ticket is closed, please do not interact with this channel anymore."))
	}

	return ids
}

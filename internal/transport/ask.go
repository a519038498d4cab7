package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

var numberEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

func numberEmoji(n int) string {
	if n < 1 || n > len(numberEmojis) {
		return "*️⃣"
	}
	return numberEmojis[n-1]
}

func emojiNumber(emoji string) int {
	for i, e := range numberEmojis {
		if e == emoji {
			return i + 1
		}
	}
	return 0
}

// DiscordPrompter implements Prompter by posting a question and waiting on
// gateway events until an eligible answer or the deadline.
type DiscordPrompter struct {
	session   *discordgo.Session
	messenger *Discord
}

// NewDiscordPrompter creates a DiscordPrompter
func NewDiscordPrompter(session *discordgo.Session, messenger *Discord) *DiscordPrompter {
	return &DiscordPrompter{session: session, messenger: messenger}
}

// AskText posts the prompt and waits for a text reply from an eligible user
func (p *DiscordPrompter) AskText(ctx context.Context, channelID, prompt string, eligible AnswerFilter, timeout time.Duration, validate Validator) (string, error) {
	if _, err := p.messenger.Post(ctx, channelID, prompt); err != nil {
		return "", err
	}

	answer := make(chan string, 1)
	remove := p.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.ChannelID != channelID || m.Author == nil || m.Author.Bot {
			return
		}
		if eligible != nil && !eligible(m.Author.ID) {
			return
		}
		if validate != nil && !validate(m.Content) {
			return
		}
		select {
		case answer <- m.Content:
		default:
		}
	})
	defer remove()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case text := <-answer:
		return text, nil
	case <-timer.C:
		return "", ErrNoAnswer
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AskChoice posts the prompt with number reactions and waits for an eligible
// user to pick one
func (p *DiscordPrompter) AskChoice(ctx context.Context, channelID, prompt string, options []Choice, eligible AnswerFilter, timeout time.Duration) (string, error) {
	if len(options) == 0 || len(options) > len(numberEmojis) {
		return "", fmt.Errorf("choice count %d out of range", len(options))
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n")
	for i, opt := range options {
		sb.WriteString(fmt.Sprintf("%s %s\n", numberEmoji(i+1), opt.Label))
	}

	msgID, err := p.messenger.Post(ctx, channelID, sb.String())
	if err != nil {
		return "", err
	}
	for i := range options {
		// Reaction failures only cost convenience; the user can still react manually.
		_ = p.messenger.AddReaction(ctx, channelID, msgID, numberEmoji(i+1))
	}

	answer := make(chan int, 1)
	remove := p.session.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if r.MessageID != msgID {
			return
		}
		if p.session.State != nil && p.session.State.User != nil && r.UserID == p.session.State.User.ID {
			return
		}
		if eligible != nil && !eligible(r.UserID) {
			return
		}
		n := emojiNumber(r.Emoji.Name)
		if n < 1 || n > len(options) {
			return
		}
		select {
		case answer <- n - 1:
		default:
		}
	})
	defer remove()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case idx := <-answer:
		return options[idx].Value, nil
	case <-timer.C:
		return "", ErrNoAnswer
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

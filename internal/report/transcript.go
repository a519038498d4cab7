package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Mayerch1/IncidentBot/internal/transport"
)

const historyLimit = 100

const transcriptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Incident Transcript</title>
<style>
body { font-family: sans-serif; background: #36393f; color: #dcddde; margin: 2em; }
.message { display: flex; margin-bottom: 1em; }
.message .meta { min-width: 12em; }
.message .name { font-weight: bold; }
.message.offender .name { color: #e06c75; }
.message.victim .name { color: #61afef; }
.message.steward .name { color: #e5c07b; }
.message.bot .name { color: #98c379; }
.message .time { color: #72767d; font-size: 0.8em; }
.message .content p { margin: 0 0 0.3em 0; }
</style>
</head>
<body>
<h1>Incident Transcript</h1>
{{range .Messages}}<div class="message {{.Kind}}">
  <div class="meta">
    <div class="name">{{.Author}}</div>
    <div class="time">{{.Timestamp}}</div>
  </div>
  <div class="content">
    <p>{{.Content}}</p>
    {{if .Embeds}}<p>[{{.Embeds}} embed(s) not displayed]</p>{{end}}
    {{if .Attachments}}<p>[{{.Attachments}} attachment(s) not displayed]</p>{{end}}
  </div>
</div>
{{end}}</body>
</html>
`

type transcriptMessage struct {
	Kind        string
	Author      string
	Timestamp   string
	Content     string
	Embeds      int
	Attachments int
}

// HTMLTranscriber renders a channel's history into an HTML document.
type HTMLTranscriber struct {
	session *discordgo.Session
	tmpl    *template.Template
}

// NewHTMLTranscriber creates an HTMLTranscriber
func NewHTMLTranscriber(session *discordgo.Session) *HTMLTranscriber {
	return &HTMLTranscriber{
		session: session,
		tmpl:    template.Must(template.New("transcript").Parse(transcriptTemplate)),
	}
}

// RenderTranscript fetches the channel history and renders it oldest-first.
// Authors other than the parties and the bot are labelled stewards; the
// permission matrices guarantee nobody else could write in the channel.
func (t *HTMLTranscriber) RenderTranscript(ctx context.Context, channelID, victimID, offenderID, stewardRoleID string) (*transport.Document, error) {
	messages, err := t.session.ChannelMessages(channelID, historyLimit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel history: %w", err)
	}

	var botID string
	if t.session.State != nil && t.session.State.User != nil {
		botID = t.session.State.User.ID
	}

	// ChannelMessages returns newest first
	rendered := make([]transcriptMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Author == nil {
			continue
		}

		kind := "steward"
		switch msg.Author.ID {
		case victimID:
			kind = "victim"
		case offenderID:
			kind = "offender"
		case botID:
			kind = "bot"
		}

		rendered = append(rendered, transcriptMessage{
			Kind:        kind,
			Author:      msg.Author.Username,
			Timestamp:   msg.Timestamp.Format("02.01.06 15:04"),
			Content:     msg.Content,
			Embeds:      len(msg.Embeds),
			Attachments: len(msg.Attachments),
		})
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, struct{ Messages []transcriptMessage }{rendered}); err != nil {
		return nil, fmt.Errorf("failed to render transcript: %w", err)
	}

	return &transport.Document{
		Filename: fmt.Sprintf("transcript-%s-%s.html", channelID, time.Now().UTC().Format("20060102")),
		Content:  buf.Bytes(),
	}, nil
}

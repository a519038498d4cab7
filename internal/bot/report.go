package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Mayerch1/IncidentBot/internal/engine"
	"github.com/Mayerch1/IncidentBot/internal/report"
	"github.com/Mayerch1/IncidentBot/internal/storage"
	"github.com/Mayerch1/IncidentBot/internal/transport"
)

// Reporters get a generous window per question; the whole intake is bounded
// below in runReportIntake.
const reportAnswerTimeout = 10 * time.Minute

var mentionRe = regexp.MustCompile(`^<@!?(\d+)>$`)

var infringementChoices = []transport.Choice{
	{Label: "Causing a collision", Value: "causing a collision"},
	{Label: "Abuse of track limits", Value: "abuse of track limits"},
	{Label: "Blocking / erratic defending", Value: "blocking"},
	{Label: "Dangerous rejoin", Value: "dangerous rejoin"},
	{Label: "Unsportsmanlike behaviour", Value: "unsportsmanlike behaviour"},
	{Label: "Other", Value: "other"},
}

var reviewChoices = []transport.Choice{
	{Label: "Confirm and open the ticket", Value: "confirm"},
	{Label: "Correct the answers", Value: "edit"},
	{Label: "Cancel the report", Value: "cancel"},
}

// handleReport handles the /report command by moving the conversation into
// the reporter's DMs.
func (b *Bot) handleReport(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil {
		respondWithMessage(s, i, "This command only works inside a server.")
		return
	}

	respondWithMessage(s, i, "Check your DMs, the report continues there.")
	go b.runReportIntake(i.GuildID, i.Member.User.ID)
}

// runReportIntake walks the reporter through the intake questions, shows a
// summary for review and opens the incident on confirmation. An unanswered
// question aborts the whole report.
func (b *Bot) runReportIntake(guildID, reporterID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	dm, err := b.msgr.DMChannel(ctx, reporterID)
	if err != nil {
		slog.Error("Failed to open report DM", "user", reporterID, "error", err)
		return
	}

	if _, err := b.msgr.Post(ctx, dm,
		"You are about to report an incident. Answer the following questions; "+
			"at the end you can review or cancel the ticket, so you do not need "+
			"to start over if you made a typo."); err != nil {
		slog.Error("Failed to start report intake", "user", reporterID, "error", err)
		return
	}

	onlyReporter := func(userID string) bool { return userID == reporterID }

	intake, ok := b.collectReportAnswers(ctx, dm, reporterID)
	if !ok {
		return
	}

	// review loop: the reporter confirms, corrects or discards before
	// anything touches the server
	for {
		preview := &storage.Incident{
			RaceName:         intake.RaceName,
			LapCorner:        intake.LapCorner,
			ReportedCategory: intake.ReportedCategory,
			Victim:           intake.Victim,
			Offender:         intake.Offender,
		}
		if _, err := b.msgr.PostEmbed(ctx, dm, report.Embeds{}.IncidentSummary(preview, "Incident report summary")); err != nil {
			slog.Error("Failed to post report summary", "user", reporterID, "error", err)
			return
		}

		verdict, err := b.prompter.AskChoice(ctx, dm,
			"Here is a summary of your report. Please review it.",
			reviewChoices, onlyReporter, reportAnswerTimeout)
		if err != nil || verdict == "cancel" {
			_, _ = b.msgr.Post(ctx, dm, "The report was cancelled. You can start again with /report.")
			return
		}
		if verdict == "confirm" {
			break
		}

		_, _ = b.msgr.Post(ctx, dm, "Correcting the report. You can copy-paste the answers you do not want to change.")
		intake, ok = b.collectReportAnswers(ctx, dm, reporterID)
		if !ok {
			return
		}
	}

	inc, err := b.eng.Create(ctx, guildID, intake)
	switch {
	case err == nil:
		_, _ = b.msgr.Post(ctx, dm,
			"Your incident ticket was opened: <#"+inc.ChannelID+">. Please continue there.")
	case errors.Is(err, engine.ErrMissingConfig):
		_, _ = b.msgr.Post(ctx, dm,
			"This server is not set up for incident reports yet. Ask an admin to run /incident-setup.")
	case errors.Is(err, engine.ErrSameParticipant):
		_, _ = b.msgr.Post(ctx, dm, "You cannot report yourself.")
	default:
		slog.Error("Failed to open incident", "guild", guildID, "user", reporterID, "error", err)
		_, _ = b.msgr.Post(ctx, dm, "Something went wrong while opening the ticket. Please try again later.")
	}
}

// collectReportAnswers runs the intake questions once. ok is false when the
// reporter stopped answering; an abort notice has already been sent then.
func (b *Bot) collectReportAnswers(ctx context.Context, dm, reporterID string) (engine.Intake, bool) {
	onlyReporter := func(userID string) bool { return userID == reporterID }
	nonEmpty := func(text string) bool { return strings.TrimSpace(text) != "" }
	numeric := func(text string) bool {
		_, err := strconv.Atoi(strings.TrimSpace(text))
		return err == nil
	}
	mention := func(text string) bool { return mentionRe.MatchString(strings.TrimSpace(text)) }

	ask := func(prompt string, validate transport.Validator) (string, bool) {
		answer, err := b.prompter.AskText(ctx, dm, prompt, onlyReporter, reportAnswerTimeout, validate)
		if err != nil {
			_, _ = b.msgr.Post(ctx, dm, "No answer received, the report was discarded. Use /report to start over.")
			return "", false
		}
		return strings.TrimSpace(answer), true
	}

	race, ok := ask("Which race did the incident happen in? (e.g. 'Round 3 - Monza')", nonEmpty)
	if !ok {
		return engine.Intake{}, false
	}
	lapCorner, ok := ask("In which lap and corner did it happen? (type `-` if not applicable)", nonEmpty)
	if !ok {
		return engine.Intake{}, false
	}

	category, err := b.prompter.AskChoice(ctx, dm,
		"Which type of infringement are you reporting? React with the matching number.",
		infringementChoices, onlyReporter, reportAnswerTimeout)
	if err != nil {
		_, _ = b.msgr.Post(ctx, dm, "No answer received, the report was discarded. Use /report to start over.")
		return engine.Intake{}, false
	}

	victimName, ok := ask("What is your driver name?", nonEmpty)
	if !ok {
		return engine.Intake{}, false
	}
	victimNumberRaw, ok := ask("What is your car number?", numeric)
	if !ok {
		return engine.Intake{}, false
	}
	victimNumber, _ := strconv.Atoi(victimNumberRaw)
	offenderMention, ok := ask("Please @mention the driver you are reporting", mention)
	if !ok {
		return engine.Intake{}, false
	}
	offenderID := mentionRe.FindStringSubmatch(offenderMention)[1]
	offenderName, ok := ask("What is their driver name?", nonEmpty)
	if !ok {
		return engine.Intake{}, false
	}
	offenderNumberRaw, ok := ask("What is their car number?", numeric)
	if !ok {
		return engine.Intake{}, false
	}
	offenderNumber, _ := strconv.Atoi(offenderNumberRaw)

	return engine.Intake{
		RaceName:         race,
		LapCorner:        lapCorner,
		ReportedCategory: category,
		Victim: storage.Driver{
			Name:   victimName,
			Number: victimNumber,
			UserID: reporterID,
		},
		Offender: storage.Driver{
			Name:   offenderName,
			Number: offenderNumber,
			UserID: offenderID,
		},
	}, true
}

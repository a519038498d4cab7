// Package engine implements the incident lifecycle state machine: actor
// validation, stage transitions and their side effects, reverts, cancels and
// timeout-forced advances. It is the single point of mutation for an
// incident; transitions on the same channel never interleave.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Mayerch1/IncidentBot/internal/storage"
	"github.com/Mayerch1/IncidentBot/internal/transport"
)

var (
	// ErrUnauthorized means the wrong actor triggered an operation. The state
	// is untouched; callers reply softly or stay silent.
	ErrUnauthorized = errors.New("actor is not authorized for this action")

	// ErrEvidenceMissing means a manual advance from a proof state found no
	// evidence; a confirmation prompt was posted instead of advancing.
	ErrEvidenceMissing = errors.New("no evidence posted yet")

	// ErrRevertRefused means the incident sits in its initial state, where
	// revert makes no sense; the ticket can only be cancelled.
	ErrRevertRefused = errors.New("cannot revert the initial stage, cancel the ticket instead")

	// ErrInvalidStage means the operation does not apply to the incident's
	// current state.
	ErrInvalidStage = errors.New("operation not valid in the current stage")

	// ErrMissingConfig means the guild lacks required incident configuration.
	ErrMissingConfig = errors.New("incident setup is incomplete: category, steward role and summary channel must be configured")

	// ErrSameParticipant rejects tickets where victim and offender coincide.
	ErrSameParticipant = errors.New("victim and offender must be different users")
)

// Trigger distinguishes a human-initiated operation from a timeout sweep.
type Trigger int

const (
	TriggerManual Trigger = iota
	TriggerTimeout
)

// Renderer builds the summary card for an incident.
type Renderer interface {
	IncidentSummary(inc *storage.Incident, title string) *discordgo.MessageEmbed
}

// Config carries the engine's collaborators.
type Config struct {
	Repo        *storage.Repository
	Messenger   transport.Messenger
	Prompter    transport.Prompter
	Roles       transport.RoleChecker
	Renderer    Renderer
	Transcriber transport.Transcriber
	Timeouts    Timeouts

	// Now overrides the clock, used by tests. Defaults to time.Now.
	Now func() time.Time
}

// Engine drives the incident lifecycle.
type Engine struct {
	repo     *storage.Repository
	msgr     transport.Messenger
	prompter transport.Prompter
	roles    transport.RoleChecker
	renderer Renderer
	scribe   transport.Transcriber
	timeouts Timeouts
	locks    *channelLocks
	now      func() time.Time
}

// New creates an Engine
func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		repo:     cfg.Repo,
		msgr:     cfg.Messenger,
		prompter: cfg.Prompter,
		roles:    cfg.Roles,
		renderer: cfg.Renderer,
		scribe:   cfg.Transcriber,
		timeouts: cfg.Timeouts,
		locks:    newChannelLocks(),
		now:      now,
	}
}

// Timeouts returns the engine's timeout policy, used by the sweeper to
// compute candidate cutoffs.
func (e *Engine) Timeouts() Timeouts {
	return e.timeouts
}

// Intake carries the data collected by the reporting flow.
type Intake struct {
	RaceName         string
	LapCorner        string
	ReportedCategory string
	Victim           storage.Driver
	Offender         storage.Driver
}

// Create opens a new incident: draws a ticket number, creates the channel,
// applies the initial permission matrix and posts the first prompts. Refused
// with ErrMissingConfig when the guild is not set up; nothing is persisted in
// that case. The ticket number is consumed even if creation fails afterwards,
// so numbers are never reused.
func (e *Engine) Create(ctx context.Context, guildID string, intake Intake) (*storage.Incident, error) {
	settings, err := e.repo.GetSettings(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guild settings: %w", err)
	}
	if settings.IncidentCategoryID == "" || settings.StewardRoleID == "" || settings.SummaryChannelID == "" {
		return nil, ErrMissingConfig
	}
	if intake.Victim.UserID == intake.Offender.UserID {
		return nil, ErrSameParticipant
	}

	number, err := e.repo.NextIncidentNumber(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to draw ticket number: %w", err)
	}
	title := fmt.Sprintf("incident-ticket-%d", number)

	channelID, err := e.msgr.CreateChannel(ctx, guildID, settings.IncidentCategoryID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to create incident channel: %w", err)
	}

	now := e.now()
	lap := intake.LapCorner
	if lap == "" {
		lap = "-"
	}
	inc := &storage.Incident{
		GuildID:          guildID,
		ChannelID:        channelID,
		State:            storage.StateVictimStatement,
		Title:            title,
		RaceName:         intake.RaceName,
		LapCorner:        lap,
		ReportedCategory: intake.ReportedCategory,
		Victim:           intake.Victim,
		Offender:         intake.Offender,
		LastActivityAt:   now,
		CreatedAt:        now,
	}

	// Channel access: stewards always write, parties per the initial matrix,
	// everyone else sees nothing. The everyone role shares the guild id.
	if err := e.msgr.SetRoleWrite(ctx, channelID, settings.StewardRoleID, true); err != nil {
		slog.Warn("Failed to grant steward access", "channel", channelID, "error", err)
	}
	e.applyMatrix(ctx, inc, storage.StateVictimStatement)
	if err := e.msgr.HideChannel(ctx, channelID, guildID); err != nil {
		slog.Warn("Failed to hide incident channel", "channel", channelID, "error", err)
	}

	// The summary card stays in the channel permanently; only the prompts
	// below are queued for cleanup.
	e.postEmbedPrompt(ctx, channelID, e.renderer.IncidentSummary(inc, title))
	inc.CleanupQueue = e.postEntryPrompts(ctx, inc, settings, storage.StateVictimStatement)

	if err := e.repo.PutIncident(inc); err != nil {
		return nil, fmt.Errorf("failed to persist incident: %w", err)
	}

	slog.Info("Incident created", "guild", guildID, "channel", channelID, "title", title)
	return inc, nil
}

// NoteMessage records a text message observed in an incident channel. It
// only touches the activity timestamp and the evidence flag, both as
// single-field updates, so it deliberately takes no transition lock.
func (e *Engine) NoteMessage(channelID, authorID string) error {
	inc, err := e.repo.GetIncident(channelID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := e.repo.TouchActivity(channelID, e.now()); err != nil {
		return err
	}

	if (inc.State == storage.StateVictimProof && authorID == inc.Victim.UserID) ||
		(inc.State == storage.StateOffenderProof && authorID == inc.Offender.UserID) {
		return e.repo.MarkEvidencePosted(channelID)
	}
	return nil
}

// Advance moves the incident one stage forward. Manual triggers are checked
// against the state's authorized actor and, in the proof states, against the
// evidence gate. Timeout triggers skip both but re-verify the idle threshold
// under the lock, so two back-to-back sweeps cannot double-advance.
func (e *Engine) Advance(ctx context.Context, channelID string, actor Actor, trigger Trigger) error {
	release := e.locks.acquire(channelID)
	defer release()

	inc, err := e.repo.GetIncident(channelID)
	if err != nil {
		return err
	}
	if inc.State.Terminal() || inc.State == storage.StateDiscussion {
		// the discussion stage only moves through Close
		return ErrInvalidStage
	}

	settings, err := e.repo.GetSettings(inc.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}

	switch trigger {
	case TriggerManual:
		if !authorizedToAdvance(inc, actor) {
			return ErrUnauthorized
		}
		if err := e.checkEvidence(ctx, inc); err != nil {
			return err
		}
	case TriggerTimeout:
		if e.now().Sub(inc.LastActivityAt) <= e.timeouts.Idle(inc.State) {
			return nil
		}
	}

	// Leaving the steward stage first solicits the verdict, then performs
	// the standard transition.
	if inc.State == storage.StateStewardStatement {
		e.solicitVerdict(ctx, inc, settings)
	}

	next, ok := inc.State.Next()
	if !ok {
		return ErrInvalidStage
	}
	return e.transitionTo(ctx, inc, settings, next)
}

// checkEvidence enforces the evidence gate on the proof states. When nothing
// was posted, a confirmation prompt is published once; the actor advances by
// posting anything (evidence or an acknowledgement) and triggering again.
func (e *Engine) checkEvidence(ctx context.Context, inc *storage.Incident) error {
	if inc.State != storage.StateVictimProof && inc.State != storage.StateOffenderProof {
		return nil
	}
	if inc.EvidencePosted {
		return nil
	}

	if !inc.EvidenceWarned {
		who := inc.Victim.UserID
		if inc.State == storage.StateOffenderProof {
			who = inc.Offender.UserID
		}
		if id, ok := e.postPrompt(ctx, inc.ChannelID, fmt.Sprintf(
			"<@%s> No proof was posted yet. Upload your evidence (or post any message confirming you have none), then react with ⏩ again.",
			who), EmojiAdvance); ok {
			inc.CleanupQueue = append(inc.CleanupQueue, id)
		}
		inc.EvidenceWarned = true
		if err := e.repo.PutIncident(inc); err != nil {
			return err
		}
	}
	return ErrEvidenceMissing
}

// solicitVerdict asks the stewards for infringement and outcome, falling
// back to the reporter's classification when nobody answers in time.
func (e *Engine) solicitVerdict(ctx context.Context, inc *storage.Incident, settings *storage.GuildSettings) {
	stewards := func(userID string) bool {
		return e.roles.HasRole(inc.GuildID, userID, settings.StewardRoleID)
	}

	infringement, err := e.prompter.AskText(ctx, inc.ChannelID, fmt.Sprintf(
		"<@&%s> please state the category of infringement which was judged in 1 short sentence (e.g. 'causing a collision', 'abuse of track limits', ...)",
		settings.StewardRoleID), stewards, e.timeouts.Solicitation, nil)
	if err != nil {
		slog.Info("No infringement answer, falling back to reported category", "channel", inc.ChannelID)
		infringement = inc.ReportedCategory
	}

	outcome, err := e.prompter.AskText(ctx, inc.ChannelID, fmt.Sprintf(
		"<@&%s> please state the action taken in 1 short sentence (e.g. '1st warning', 'racing incident', ...)",
		settings.StewardRoleID), stewards, e.timeouts.Solicitation, nil)
	if err != nil {
		slog.Info("No outcome answer, recording none", "channel", inc.ChannelID)
		outcome = "no action recorded"
	}

	inc.Infringement = infringement
	inc.Outcome = outcome
}

// transitionTo performs the standard transition into next: drain the cleanup
// queue, apply the permission matrix, post the entry prompts, update the
// record and persist it as one atomic write. Side effects are issued before
// the state is persisted; a crash in between costs at worst a duplicate
// prompt on the next sweep, never a lost ticket.
func (e *Engine) transitionTo(ctx context.Context, inc *storage.Incident, settings *storage.GuildSettings, next storage.State) error {
	e.drainCleanup(ctx, inc)
	e.applyMatrix(ctx, inc, next)
	inc.CleanupQueue = e.postEntryPrompts(ctx, inc, settings, next)

	inc.State = next
	inc.LastActivityAt = e.now()
	inc.EvidencePosted = false
	inc.EvidenceWarned = false
	if next == storage.StateClosed && inc.LockedAt == nil {
		t := e.now()
		inc.LockedAt = &t
	}

	if err := e.repo.PutIncident(inc); err != nil {
		return fmt.Errorf("failed to persist transition: %w", err)
	}
	slog.Info("Incident transitioned", "channel", inc.ChannelID, "state", inc.State)
	return nil
}

// drainCleanup deletes all queued prompt messages. Per-message failures are
// swallowed; a message that is already gone must not block the transition.
func (e *Engine) drainCleanup(ctx context.Context, inc *storage.Incident) {
	for _, id := range inc.CleanupQueue {
		err := e.msgr.Delete(ctx, inc.ChannelID, id)
		if err != nil && !errors.Is(err, transport.ErrMessageNotFound) {
			slog.Warn("Failed to delete prompt", "channel", inc.ChannelID, "message", id, "error", err)
		}
	}
	inc.CleanupQueue = nil
}

// Close locks the ticket: publishes the final disposition to the summary
// channel, delivers the transcript, flags the channel and transitions into
// the closed state. Manual closes require a steward; timeout closes re-check
// the idle threshold under the lock.
func (e *Engine) Close(ctx context.Context, channelID string, actor Actor, trigger Trigger) error {
	release := e.locks.acquire(channelID)
	defer release()

	inc, err := e.repo.GetIncident(channelID)
	if err != nil {
		return err
	}
	if inc.State != storage.StateDiscussion {
		return ErrInvalidStage
	}

	switch trigger {
	case TriggerManual:
		if !actor.IsSteward {
			return ErrUnauthorized
		}
	case TriggerTimeout:
		if e.now().Sub(inc.LastActivityAt) <= e.timeouts.Discussion {
			return nil
		}
	}

	settings, err := e.repo.GetSettings(inc.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}

	if settings.SummaryChannelID != "" {
		if _, err := e.msgr.PostEmbed(ctx, settings.SummaryChannelID, e.renderer.IncidentSummary(inc, inc.Title)); err != nil {
			slog.Error("Failed to publish summary", "channel", channelID, "error", err)
		}
	}
	e.deliverTranscript(ctx, inc, settings)

	if err := e.msgr.Rename(ctx, channelID, "closed-"+inc.Title); err != nil {
		slog.Warn("Failed to flag channel as closed", "channel", channelID, "error", err)
	}

	return e.transitionTo(ctx, inc, settings, storage.StateClosed)
}

func (e *Engine) deliverTranscript(ctx context.Context, inc *storage.Incident, settings *storage.GuildSettings) {
	if settings.LogChannelID == "" {
		return
	}
	doc, err := e.scribe.RenderTranscript(ctx, inc.ChannelID, inc.Victim.UserID, inc.Offender.UserID, settings.StewardRoleID)
	if err != nil {
		slog.Error("Failed to render transcript", "channel", inc.ChannelID, "error", err)
		return
	}
	if err := e.msgr.PostFile(ctx, settings.LogChannelID, doc.Filename, doc.Content, fmt.Sprintf("Transcript for %s", inc.Title)); err != nil {
		slog.Error("Failed to deliver transcript", "channel", inc.ChannelID, "error", err)
	}
}

// Cancel aborts the ticket outside the normal forward flow. The victim may
// cancel until the offender is involved; stewards may cancel any open
// ticket. No verdict is solicited and no summary is published.
func (e *Engine) Cancel(ctx context.Context, channelID string, actor Actor) error {
	release := e.locks.acquire(channelID)
	defer release()

	inc, err := e.repo.GetIncident(channelID)
	if err != nil {
		return err
	}
	if inc.State.Terminal() {
		return ErrInvalidStage
	}

	victimMay := actor.UserID == inc.Victim.UserID && inc.State.Before(storage.StateOffenderStatement)
	if !victimMay && !actor.IsSteward {
		return ErrUnauthorized
	}

	if err := e.msgr.Rename(ctx, channelID, "cancelled-"+inc.Title); err != nil {
		slog.Warn("Failed to flag channel as cancelled", "channel", channelID, "error", err)
	}

	e.drainCleanup(ctx, inc)
	e.applyMatrix(ctx, inc, storage.StateClosed)
	if id, ok := e.postPrompt(ctx, channelID, "This incident is now marked as closed. It will be deleted soon."); ok {
		inc.CleanupQueue = append(inc.CleanupQueue, id)
	}

	now := e.now()
	inc.State = storage.StateClosed
	inc.LockedAt = &now
	inc.LastActivityAt = now
	inc.EvidencePosted = false
	inc.EvidenceWarned = false

	if err := e.repo.PutIncident(inc); err != nil {
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}
	slog.Info("Incident cancelled", "channel", channelID, "by", actor.UserID)
	return nil
}

// Revert steps the ticket back one stage, re-running the prior stage's entry
// actions. Verdict fields are never touched; re-opening a closed ticket
// clears the lock timestamp so the retention sweep leaves it alone.
func (e *Engine) Revert(ctx context.Context, channelID string, actor Actor) error {
	release := e.locks.acquire(channelID)
	defer release()

	inc, err := e.repo.GetIncident(channelID)
	if err != nil {
		return err
	}
	if !actor.IsSteward {
		return ErrUnauthorized
	}

	var target storage.State
	switch inc.State {
	case storage.StateVictimStatement:
		// nothing precedes the first stage; tell the steward what to do instead
		if id, ok := e.postPrompt(ctx, channelID,
			"This ticket is in its first stage, there is nothing to revert to. Cancel the ticket instead if it was opened in error."); ok {
			inc.CleanupQueue = append(inc.CleanupQueue, id)
			if err := e.repo.PutIncident(inc); err != nil {
				return err
			}
		}
		return ErrRevertRefused
	case storage.StateClosed:
		target = storage.StateDiscussion
		inc.LockedAt = nil
		if err := e.msgr.Rename(ctx, channelID, inc.Title); err != nil {
			slog.Warn("Failed to restore channel name", "channel", channelID, "error", err)
		}
	default:
		target, _ = inc.State.Prev()
	}

	settings, err := e.repo.GetSettings(inc.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}
	return e.transitionTo(ctx, inc, settings, target)
}

// Delete removes the incident record and its channel once the retention
// period after locking has elapsed.
func (e *Engine) Delete(ctx context.Context, channelID string) error {
	release := e.locks.acquire(channelID)
	defer release()

	inc, err := e.repo.GetIncident(channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if inc.State != storage.StateClosed || inc.LockedAt == nil ||
		e.now().Sub(*inc.LockedAt) <= e.timeouts.ClosedRetention {
		return nil
	}

	if err := e.repo.DeleteIncident(channelID); err != nil {
		return err
	}

	if err := e.msgr.DeleteChannel(ctx, channelID); err != nil {
		slog.Error("Failed to delete incident channel", "channel", channelID, "error", err)
	}
	slog.Info("Incident deleted", "channel", channelID)
	return nil
}

// EditOutcome lets a steward privately correct the verdict of a ticket in
// discussion. The DM conversation happens without the transition lock; the
// record is reloaded and re-validated before the fields are written.
func (e *Engine) EditOutcome(ctx context.Context, channelID string, actor Actor) error {
	inc, err := e.repo.GetIncident(channelID)
	if err != nil {
		return err
	}
	if inc.State != storage.StateDiscussion {
		return ErrInvalidStage
	}
	if !actor.IsSteward {
		return ErrUnauthorized
	}

	dm, err := e.msgr.DMChannel(ctx, actor.UserID)
	if err != nil {
		return fmt.Errorf("failed to open DM for outcome edit: %w", err)
	}
	if _, err := e.msgr.Post(ctx, dm, fmt.Sprintf(
		"Here you can correct the infringement and outcome of %s. Ignore these messages if you reacted by accident.",
		inc.Title)); err != nil {
		return err
	}

	editorOnly := func(userID string) bool { return userID == actor.UserID }

	infringement, err := e.prompter.AskText(ctx, dm, "Please correct the infringement (type `-` if it didn't change)",
		editorOnly, e.timeouts.Solicitation, nil)
	if err != nil {
		infringement = "-"
	}
	outcome, err := e.prompter.AskText(ctx, dm, "Please correct the outcome (type `-` if it didn't change)",
		editorOnly, e.timeouts.Solicitation, nil)
	if err != nil {
		outcome = "-"
	}

	release := e.locks.acquire(channelID)
	defer release()

	inc, err = e.repo.GetIncident(channelID)
	if err != nil {
		return err
	}
	if inc.State != storage.StateDiscussion {
		return ErrInvalidStage
	}

	changed := false
	if infringement != "" && infringement != "-" {
		inc.Infringement = infringement
		changed = true
	}
	if outcome != "" && outcome != "-" {
		inc.Outcome = outcome
		changed = true
	}
	if !changed {
		_, _ = e.msgr.Post(ctx, dm, "No modification performed.")
		return nil
	}

	if id, ok := e.postEmbedPrompt(ctx, channelID, e.renderer.IncidentSummary(inc, inc.Title), EmojiLock, EmojiEdit); ok {
		inc.CleanupQueue = append(inc.CleanupQueue, id)
	}
	if err := e.repo.PutIncident(inc); err != nil {
		return fmt.Errorf("failed to persist outcome edit: %w", err)
	}
	_, _ = e.msgr.Post(ctx, dm, "Done")
	return nil
}

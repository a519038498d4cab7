// Package transport defines the capability contracts the lifecycle engine
// requires from the chat platform, plus their Discord implementations.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrMessageNotFound is returned by Delete when the message is already gone.
// Callers treat it as success; channel hygiene degrades gracefully.
var ErrMessageNotFound = errors.New("message not found")

// ErrNoAnswer is returned by Prompter calls when the solicitation deadline
// passes without an eligible response.
var ErrNoAnswer = errors.New("no answer before deadline")

// Messenger is the raw messaging capability: posting, deleting, channel
// management and write-permission flips.
type Messenger interface {
	// Post sends a plain message and returns its id.
	Post(ctx context.Context, channelID, content string) (messageID string, err error)

	// PostEmbed sends an embed message and returns its id.
	PostEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (messageID string, err error)

	// PostFile sends a file attachment with an optional comment.
	PostFile(ctx context.Context, channelID, filename string, content []byte, comment string) error

	// AddReaction adds a reaction emoji to a message.
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	// Delete removes a message. Returns ErrMessageNotFound if it is already gone.
	Delete(ctx context.Context, channelID, messageID string) error

	// SetMemberWrite grants or revokes a member's permission to write in the
	// channel. Read access is always kept.
	SetMemberWrite(ctx context.Context, channelID, userID string, canWrite bool) error

	// SetRoleWrite is SetMemberWrite for a role.
	SetRoleWrite(ctx context.Context, channelID, roleID string, canWrite bool) error

	// HideChannel removes all access to the channel for a role, used to keep
	// incident channels invisible to everyone but the parties and stewards.
	HideChannel(ctx context.Context, channelID, roleID string) error

	// Rename changes the channel name, used to flag closed or cancelled tickets.
	Rename(ctx context.Context, channelID, name string) error

	// CreateChannel creates a text channel under the given category and
	// returns its id.
	CreateChannel(ctx context.Context, guildID, categoryID, name string) (channelID string, err error)

	// DeleteChannel removes the channel entirely.
	DeleteChannel(ctx context.Context, channelID string) error

	// ChannelResolvable reports whether the channel can currently be resolved.
	// A false result is presumed transient, never authoritative.
	ChannelResolvable(channelID string) bool

	// DMChannel opens (or reuses) the direct-message channel with a user.
	DMChannel(ctx context.Context, userID string) (channelID string, err error)
}

// AnswerFilter decides whether a responding user is eligible to answer a
// solicitation.
type AnswerFilter func(userID string) bool

// Validator rejects malformed answers; the prompter keeps waiting until a
// valid one arrives or the deadline passes.
type Validator func(text string) bool

// Choice is one option of a choice solicitation.
type Choice struct {
	Label string
	Value string
}

// Prompter blocks the triggering flow until a human answers or the deadline
// passes, returning ErrNoAnswer in the latter case.
type Prompter interface {
	// AskText posts the prompt into the channel and waits for a text reply
	// from an eligible user. validate may be nil.
	AskText(ctx context.Context, channelID, prompt string, eligible AnswerFilter, timeout time.Duration, validate Validator) (string, error)

	// AskChoice posts the prompt with the given options and waits for an
	// eligible user to pick one, returning the chosen Value.
	AskChoice(ctx context.Context, channelID, prompt string, options []Choice, eligible AnswerFilter, timeout time.Duration) (string, error)
}

// RoleChecker answers role-membership questions, used for steward checks.
type RoleChecker interface {
	HasRole(guildID, userID, roleID string) bool
}

// Document is a rendered transcript ready for delivery.
type Document struct {
	Filename string
	Content  []byte
}

// Transcriber renders an archive of an incident channel's history.
type Transcriber interface {
	RenderTranscript(ctx context.Context, channelID, victimID, offenderID, stewardRoleID string) (*Document, error)
}

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Messenger on top of a discordgo session
type Discord struct {
	session *discordgo.Session
}

// NewDiscord creates a Discord messenger
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

// Post sends a plain message and returns its id
func (d *Discord) Post(ctx context.Context, channelID, content string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	return msg.ID, nil
}

// PostEmbed sends an embed message and returns its id
func (d *Discord) PostEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error) {
	msg, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to post embed: %w", err)
	}
	return msg.ID, nil
}

// PostFile sends a file attachment with an optional comment
func (d *Discord) PostFile(ctx context.Context, channelID, filename string, content []byte, comment string) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: comment,
		Files: []*discordgo.File{
			{Name: filename, Reader: bytes.NewReader(content)},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post file: %w", err)
	}
	return nil
}

// AddReaction adds a reaction emoji to a message
func (d *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return d.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
}

// Delete removes a message, mapping Discord's unknown-message error to
// ErrMessageNotFound
func (d *Discord) Delete(ctx context.Context, channelID, messageID string) error {
	err := d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil &&
		restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
		return ErrMessageNotFound
	}
	return err
}

func (d *Discord) setWrite(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, canWrite bool) error {
	allow := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	var deny int64
	if canWrite {
		allow |= int64(discordgo.PermissionSendMessages)
	} else {
		deny = int64(discordgo.PermissionSendMessages)
	}
	return d.session.ChannelPermissionSet(channelID, targetID, targetType, allow, deny, discordgo.WithContext(ctx))
}

// SetMemberWrite grants or revokes a member's write access, keeping read access
func (d *Discord) SetMemberWrite(ctx context.Context, channelID, userID string, canWrite bool) error {
	return d.setWrite(ctx, channelID, userID, discordgo.PermissionOverwriteTypeMember, canWrite)
}

// SetRoleWrite grants or revokes a role's write access, keeping read access
func (d *Discord) SetRoleWrite(ctx context.Context, channelID, roleID string, canWrite bool) error {
	return d.setWrite(ctx, channelID, roleID, discordgo.PermissionOverwriteTypeRole, canWrite)
}

// HideChannel denies a role all access to the channel
func (d *Discord) HideChannel(ctx context.Context, channelID, roleID string) error {
	deny := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory)
	return d.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, 0, deny, discordgo.WithContext(ctx))
}

// HasRole reports whether the guild member carries the role
func (d *Discord) HasRole(guildID, userID, roleID string) bool {
	member, err := d.session.State.Member(guildID, userID)
	if err != nil || member == nil {
		member, err = d.session.GuildMember(guildID, userID)
		if err != nil || member == nil {
			return false
		}
	}
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Rename changes the channel name
func (d *Discord) Rename(ctx context.Context, channelID, name string) error {
	_, err := d.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return err
}

// CreateChannel creates a text channel under the given category
func (d *Discord) CreateChannel(ctx context.Context, guildID, categoryID, name string) (string, error) {
	ch, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: categoryID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create channel: %w", err)
	}
	return ch.ID, nil
}

// DeleteChannel removes the channel
func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

// ChannelResolvable reports whether the channel can currently be fetched
func (d *Discord) ChannelResolvable(channelID string) bool {
	_, err := d.session.Channel(channelID)
	return err == nil
}

// DMChannel opens the direct-message channel with a user
func (d *Discord) DMChannel(ctx context.Context, userID string) (string, error) {
	ch, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to open DM channel: %w", err)
	}
	return ch.ID, nil
}

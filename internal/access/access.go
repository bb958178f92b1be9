package access

import (
	"context"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"errors"
	"slices"
)

// CanView is the single place channel visibility is decided. Public
// channels are open to everyone, private ones to the listed roles and to
// administrators.
func CanView(actor models.User, channel models.Channel) bool {
	if !channel.IsPrivate {
		return true
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	return slices.Contains(channel.AllowedRoles, actor.Role)
}

func CanManageChannels(actor models.User) bool {
	return actor.Role == models.RoleAdmin
}

// VisibleChannels filters a channel list down to what actor may see.
func VisibleChannels(actor models.User, channels []models.Channel) []models.Channel {
	visible := make([]models.Channel, 0, len(channels))
	for _, channel := range channels {
		if CanView(actor, channel) {
			visible = append(visible, channel)
		}
	}
	return visible
}

type Directory interface {
	GetChannel(ctx context.Context, id int64) (models.Channel, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
}

// CheckConversation decides whether actor may read and write in conv.
// Unknown conversations are validation errors, hidden ones permission
// errors.
func CheckConversation(ctx context.Context, dir Directory, actor models.User, conv models.ConversationRef) error {
	switch {
	case conv.IsChannel():
		channel, err := dir.GetChannel(ctx, conv.ChannelID)
		if errors.Is(err, chaterr.ErrNotFound) {
			return chaterr.Validation("unknown conversation %s", conv.Key())
		}
		if err != nil {
			return err
		}
		if !CanView(actor, channel) {
			return chaterr.Permission("channel %s is private", channel.Slug)
		}
		return nil

	case conv.IsDirect():
		if !conv.Includes(actor.ID) {
			return chaterr.Permission("not a participant of %s", conv.Key())
		}
		if conv.UserA == conv.UserB {
			return chaterr.Validation("cannot message yourself")
		}
		_, err := dir.GetUser(ctx, conv.Peer(actor.ID))
		if errors.Is(err, chaterr.ErrNotFound) {
			return chaterr.Validation("unknown conversation %s", conv.Key())
		}
		return err
	}

	return chaterr.Validation("unknown conversation %s", conv.Key())
}

package models

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ConversationChannel = "channel"
	ConversationDirect  = "dm"
)

// ConversationRef is either a channel or a direct message pair. Direct
// pairs are always stored lower id first so that A->B and B->A are the
// same conversation.
type ConversationRef struct {
	Kind      string
	ChannelID int64
	UserA     int64
	UserB     int64
}

func ChannelConversation(channelID int64) ConversationRef {
	return ConversationRef{Kind: ConversationChannel, ChannelID: channelID}
}

func DirectConversation(userA int64, userB int64) ConversationRef {
	if userB < userA {
		userA, userB = userB, userA
	}
	return ConversationRef{Kind: ConversationDirect, UserA: userA, UserB: userB}
}

func (c ConversationRef) IsChannel() bool { return c.Kind == ConversationChannel }

func (c ConversationRef) IsDirect() bool { return c.Kind == ConversationDirect }

func (c ConversationRef) Includes(userID int64) bool {
	return c.IsDirect() && (c.UserA == userID || c.UserB == userID)
}

// Peer returns the other participant of a direct conversation.
func (c ConversationRef) Peer(userID int64) int64 {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

func (c ConversationRef) Key() string {
	if c.IsDirect() {
		return fmt.Sprintf("%s:%d:%d", ConversationDirect, c.UserA, c.UserB)
	}
	return fmt.Sprintf("%s:%d", ConversationChannel, c.ChannelID)
}

func (c ConversationRef) String() string { return c.Key() }

// ParseConversation accepts "channel:<id>", "dm:<peerID>" (relative to
// actorID) and the canonical "dm:<a>:<b>".
func ParseConversation(s string, actorID int64) (ConversationRef, error) {
	parts := strings.Split(s, ":")

	parseID := func(p string) (int64, error) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid id %q in conversation %q", p, s)
		}
		return id, nil
	}

	switch {
	case len(parts) == 2 && parts[0] == ConversationChannel:
		id, err := parseID(parts[1])
		if err != nil {
			return ConversationRef{}, err
		}
		return ChannelConversation(id), nil
	case len(parts) == 2 && parts[0] == ConversationDirect:
		peer, err := parseID(parts[1])
		if err != nil {
			return ConversationRef{}, err
		}
		return DirectConversation(actorID, peer), nil
	case len(parts) == 3 && parts[0] == ConversationDirect:
		a, err := parseID(parts[1])
		if err != nil {
			return ConversationRef{}, err
		}
		b, err := parseID(parts[2])
		if err != nil {
			return ConversationRef{}, err
		}
		return DirectConversation(a, b), nil
	}

	return ConversationRef{}, fmt.Errorf("unknown conversation %q", s)
}

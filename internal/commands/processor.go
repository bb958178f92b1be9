package commands

import (
	"context"
	"editorchat-backend/internal/access"
	"editorchat-backend/internal/attachments"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/store"
	"editorchat-backend/internal/validator"
	"strings"

	"go.uber.org/zap"
)

type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Processor is the only way state changes. Each command runs while holding
// the lock of the conversation it touches, so sends get ids in commit order
// and toggles on one message never interleave.
type Processor struct {
	store *store.Store
	locks Locker
	sugar *zap.SugaredLogger
}

func New(s *store.Store, locks Locker, sugar *zap.SugaredLogger) *Processor {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &Processor{store: s, locks: locks, sugar: sugar}
}

func lockKey(conversationKey string) string {
	return "conversation:" + conversationKey
}

func (p *Processor) inConversation(ctx context.Context, key string, fn func() error) error {
	unlock, err := p.locks.Lock(ctx, lockKey(key))
	if err != nil {
		return err
	}
	defer unlock()

	return fn()
}

// onMessage resolves the message's conversation, takes its lock and checks
// the actor may still see it before running fn.
func (p *Processor) onMessage(ctx context.Context, actor models.User, messageID int64, fn func(conv models.ConversationRef) error) error {
	key, err := p.store.MessageConversation(ctx, messageID)
	if err != nil {
		return err
	}

	conv, err := models.ParseConversation(key, actor.ID)
	if err != nil {
		return err
	}

	return p.inConversation(ctx, key, func() error {
		if err := access.CheckConversation(ctx, p.store, actor, conv); err != nil {
			return err
		}
		return fn(conv)
	})
}

type SendMessage struct {
	Conversation models.ConversationRef
	Body         string
	ParentID     int64
	Attachment   string
}

func (p *Processor) SendMessage(ctx context.Context, actor models.User, cmd SendMessage) (models.Message, error) {
	var msg models.Message

	if cmd.Attachment != "" && !attachments.IsReference(cmd.Attachment) {
		return msg, chaterr.Validation("bad_attachment")
	}

	err := p.inConversation(ctx, cmd.Conversation.Key(), func() error {
		if err := access.CheckConversation(ctx, p.store, actor, cmd.Conversation); err != nil {
			return err
		}

		var err error
		msg, err = p.store.CreateMessage(ctx, store.NewMessage{
			Conversation: cmd.Conversation,
			AuthorID:     actor.ID,
			Body:         cmd.Body,
			ParentID:     cmd.ParentID,
			Attachment:   cmd.Attachment,
		})
		return err
	})
	if err != nil {
		return msg, err
	}

	p.sugar.Debugf("User ID %d sent message ID %d to %s", actor.ID, msg.ID, msg.Conversation)
	return msg, nil
}

func (p *Processor) EditMessage(ctx context.Context, actor models.User, messageID int64, body string) (models.Message, error) {
	var msg models.Message

	err := p.onMessage(ctx, actor, messageID, func(models.ConversationRef) error {
		var err error
		msg, err = p.store.EditMessage(ctx, messageID, actor.ID, body)
		return err
	})

	return msg, err
}

func (p *Processor) DeleteMessage(ctx context.Context, actor models.User, messageID int64) ([]int64, error) {
	var deleted []int64

	err := p.onMessage(ctx, actor, messageID, func(models.ConversationRef) error {
		var err error
		deleted, err = p.store.DeleteMessage(ctx, messageID, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.sugar.Debugf("User ID %d deleted messages %v", actor.ID, deleted)
	return deleted, nil
}

func (p *Processor) ToggleReaction(ctx context.Context, actor models.User, messageID int64, emoji string) (bool, models.Message, error) {
	var added bool
	var msg models.Message

	emoji = strings.TrimSpace(emoji)
	if err := validator.Emoji(emoji); err != nil {
		return false, msg, chaterr.Validation("%s", err.Error())
	}

	err := p.onMessage(ctx, actor, messageID, func(models.ConversationRef) error {
		var err error
		added, msg, err = p.store.ToggleReaction(ctx, messageID, actor.ID, emoji)
		return err
	})

	return added, msg, err
}

// TogglePin only works in channels. Pins are shared state for everyone in
// a channel, a direct message has nobody to share them with.
func (p *Processor) TogglePin(ctx context.Context, actor models.User, messageID int64) (models.Message, error) {
	var msg models.Message

	err := p.onMessage(ctx, actor, messageID, func(conv models.ConversationRef) error {
		if !conv.IsChannel() {
			return chaterr.Validation("direct messages cannot be pinned")
		}

		var err error
		msg, err = p.store.TogglePin(ctx, messageID, actor.ID)
		return err
	})

	return msg, err
}

func (p *Processor) ToggleBookmark(ctx context.Context, actor models.User, messageID int64) (bool, error) {
	var bookmarked bool

	err := p.onMessage(ctx, actor, messageID, func(models.ConversationRef) error {
		var err error
		bookmarked, err = p.store.ToggleBookmark(ctx, messageID, actor.ID)
		return err
	})

	return bookmarked, err
}

func (p *Processor) MarkRead(ctx context.Context, actor models.User, conv models.ConversationRef, upToID int64) error {
	if err := access.CheckConversation(ctx, p.store, actor, conv); err != nil {
		return err
	}
	if upToID <= 0 {
		return chaterr.Validation("invalid message id")
	}
	return p.store.MarkRead(ctx, actor.ID, conv.Key(), upToID)
}

func (p *Processor) OpenDirect(ctx context.Context, actor models.User, peerID int64) (models.ConversationRef, error) {
	conv := models.DirectConversation(actor.ID, peerID)

	err := p.inConversation(ctx, conv.Key(), func() error {
		if err := access.CheckConversation(ctx, p.store, actor, conv); err != nil {
			return err
		}
		return p.store.OpenDirect(ctx, conv)
	})

	return conv, err
}

package poll

import (
	"context"
	"editorchat-backend/internal/access"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/store"
	"slices"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
	MaxVisible   = 500
)

// Cursor is what a client has already seen: every message up to AfterID,
// and every change up to conversation revision Since.
type Cursor struct {
	AfterID int64 `json:"afterID,string"`
	Since   int64 `json:"since,string"`
}

type Result struct {
	NewMessages     []models.Message `json:"newMessages"`
	MutatedMessages []models.Message `json:"mutatedMessages"`
	DeletedIDs      models.IDs       `json:"deletedIDs"`
	Cursor          Cursor           `json:"cursor"`
	HasMore         bool             `json:"hasMore"`
}

type Page struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// Service answers the read side. Nothing here writes; a poll can be
// repeated any number of times with the same outcome.
type Service struct {
	store *store.Store
	limit int
}

func New(s *store.Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return &Service{store: s, limit: limit}
}

func (s *Service) pageSize(requested int) int {
	if requested <= 0 || requested > s.limit {
		return s.limit
	}
	return requested
}

// Poll brings a client from cursor up to date.
//
// New messages come oldest first and always continue the cursor without a
// gap. A zero cursor gets the newest page, with HasMore set when older
// messages are left for History. Otherwise HasMore means more than a page is
// waiting and the returned cursor picks up where this page ended.
//
// For messages the client already has, it gets the messages whose revision
// moved past Since (edits, reactions, pins) and the ids of messages deleted
// since then, both limited to the newest MaxVisible. Anything older is
// current again once the client refetches it through History. If visible is
// given, only those messages are considered, and any of them that no longer
// exist are reported deleted too.
func (s *Service) Poll(ctx context.Context, actor models.User, conv models.ConversationRef, cursor Cursor, visible []int64, limit int) (Result, error) {
	result := Result{
		NewMessages:     []models.Message{},
		MutatedMessages: []models.Message{},
		DeletedIDs:      models.IDs{},
		Cursor:          cursor,
	}

	if err := access.CheckConversation(ctx, s.store, actor, conv); err != nil {
		return result, err
	}
	if cursor.AfterID < 0 || cursor.Since < 0 {
		return result, chaterr.Validation("invalid cursor")
	}
	if len(visible) > MaxVisible {
		visible = visible[len(visible)-MaxVisible:]
	}

	key := conv.Key()
	size := s.pageSize(limit)

	err := s.store.View(ctx, func(r store.Reader) error {
		head, err := r.Head(ctx, key)
		if err != nil {
			return err
		}

		if cursor.AfterID == 0 {
			result.NewMessages, err = r.Before(ctx, key, 0, size+1, actor.ID)
			if err != nil {
				return err
			}
			if len(result.NewMessages) > size {
				result.NewMessages = result.NewMessages[1:]
				result.HasMore = true
			}
		} else {
			result.NewMessages, err = r.After(ctx, key, cursor.AfterID, size+1, actor.ID)
			if err != nil {
				return err
			}
			if len(result.NewMessages) > size {
				result.NewMessages = result.NewMessages[:size]
				result.HasMore = true
			}

			result.MutatedMessages, err = r.MutatedSince(ctx, key, cursor.AfterID, cursor.Since, visible, MaxVisible, actor.ID)
			if err != nil {
				return err
			}

			deleted, err := r.DeletedSince(ctx, key, cursor.AfterID, cursor.Since, MaxVisible)
			if err != nil {
				return err
			}
			missing, err := r.Missing(ctx, key, visible)
			if err != nil {
				return err
			}
			result.DeletedIDs = mergeIDs(deleted, missing)
		}

		if n := len(result.NewMessages); n > 0 {
			result.Cursor.AfterID = max(cursor.AfterID, result.NewMessages[n-1].ID)
		}
		result.Cursor.Since = max(cursor.Since, head.Revision)
		return nil
	})

	return result, err
}

func mergeIDs(a []int64, b []int64) models.IDs {
	merged := append(slices.Clone(a), b...)
	slices.Sort(merged)
	return models.IDs(slices.Compact(merged))
}

// History pages backwards from beforeID (or the newest message when 0).
func (s *Service) History(ctx context.Context, actor models.User, conv models.ConversationRef, beforeID int64, limit int) (Page, error) {
	page := Page{Messages: []models.Message{}}

	if err := access.CheckConversation(ctx, s.store, actor, conv); err != nil {
		return page, err
	}

	size := s.pageSize(limit)
	err := s.store.View(ctx, func(r store.Reader) error {
		messages, err := r.Before(ctx, conv.Key(), beforeID, size+1, actor.ID)
		if err != nil {
			return err
		}
		if len(messages) > size {
			messages = messages[1:]
			page.HasMore = true
		}
		page.Messages = messages
		return nil
	})

	return page, err
}

// Thread returns the replies to a message the actor can see.
func (s *Service) Thread(ctx context.Context, actor models.User, messageID int64) ([]models.Message, error) {
	parent, err := s.store.GetMessage(ctx, messageID, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := s.checkKey(ctx, actor, parent.Conversation); err != nil {
		return nil, err
	}

	var replies []models.Message
	err = s.store.View(ctx, func(r store.Reader) error {
		var err error
		replies, err = r.Replies(ctx, messageID, actor.ID)
		return err
	})
	return replies, err
}

func (s *Service) Pinned(ctx context.Context, actor models.User, conv models.ConversationRef) ([]models.Message, error) {
	if err := access.CheckConversation(ctx, s.store, actor, conv); err != nil {
		return nil, err
	}

	var pinned []models.Message
	err := s.store.View(ctx, func(r store.Reader) error {
		var err error
		pinned, err = r.Pinned(ctx, conv.Key(), actor.ID)
		return err
	})
	return pinned, err
}

// Bookmarks lists the actor's own bookmarks, skipping messages in
// conversations the actor can no longer see.
func (s *Service) Bookmarks(ctx context.Context, actor models.User) ([]models.Message, error) {
	var bookmarked []models.Message
	err := s.store.View(ctx, func(r store.Reader) error {
		var err error
		bookmarked, err = r.Bookmarked(ctx, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	visible := []models.Message{}
	for _, msg := range bookmarked {
		err := s.checkKey(ctx, actor, msg.Conversation)
		if err == nil {
			visible = append(visible, msg)
			continue
		}
		if _, expected := chaterr.Status(err); !expected {
			return nil, err
		}
	}
	return visible, nil
}

func (s *Service) checkKey(ctx context.Context, actor models.User, key string) error {
	conv, err := models.ParseConversation(key, actor.ID)
	if err != nil {
		return err
	}
	return access.CheckConversation(ctx, s.store, actor, conv)
}

// Channels returns the channels actor may see.
func (s *Service) Channels(ctx context.Context, actor models.User) ([]models.Channel, error) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	return access.VisibleChannels(actor, channels), nil
}

// Conversations lists visible channels and the actor's direct
// conversations, most recent first, with unread counts.
func (s *Service) Conversations(ctx context.Context, actor models.User) ([]models.ConversationSummary, error) {
	channels, err := s.Channels(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.Conversations(ctx, actor, channels)
}

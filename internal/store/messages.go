package store

import (
	"context"
	"database/sql"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/mention"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/snowflake"
	"editorchat-backend/internal/validator"
	"errors"
	"time"
)

const MaxAttachmentRefLength = 512

type NewMessage struct {
	Conversation models.ConversationRef
	AuthorID     int64
	Body         string
	ParentID     int64
	Attachment   string
}

// CreateMessage appends a message to its conversation. The mention set is
// resolved against the current roster and stored in the same transaction.
func (s *Store) CreateMessage(ctx context.Context, msg NewMessage) (models.Message, error) {
	if len(msg.Attachment) > MaxAttachmentRefLength {
		return models.Message{}, chaterr.Validation("long_attachment_reference")
	}
	if err := validator.Body(msg.Body, msg.Attachment != ""); err != nil {
		return models.Message{}, chaterr.Validation("%s", err.Error())
	}

	key := msg.Conversation.Key()
	var id int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		state, err := ensureConversation(ctx, tx, msg.Conversation)
		if err != nil {
			return err
		}

		if msg.ParentID != 0 {
			var parentKey string
			err := tx.QueryRowContext(ctx, "SELECT conversation_key FROM messages WHERE id = ?", msg.ParentID).Scan(&parentKey)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && parentKey != key) {
				return chaterr.NotFound("parent message %d in %s", msg.ParentID, key)
			}
			if err != nil {
				return err
			}
		}

		// another worker may already have written past this node's clock
		id = s.ids.GenerateAfter(state.LastMessageID)

		revision, err := bumpRevision(ctx, tx, key)
		if err != nil {
			return err
		}

		var parent sql.NullInt64
		if msg.ParentID != 0 {
			parent = sql.NullInt64{Int64: msg.ParentID, Valid: true}
		}
		var attachment sql.NullString
		if msg.Attachment != "" {
			attachment = sql.NullString{String: msg.Attachment, Valid: true}
		}

		createdAt := snowflake.ExtractTime(id).UnixMilli()

		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (id, conversation_key, author_id, parent_id, body, attachment, is_pinned, edited_at, created_at, revision) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)",
			id, key, msg.AuthorID, parent, msg.Body, attachment, createdAt, revision)
		if err != nil {
			return err
		}

		if err := s.storeMentions(ctx, tx, id, msg.Body); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE conversations SET last_message_id = ?, updated_at = ? WHERE conversation_key = ?", id, createdAt, key)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}

	return s.GetMessage(ctx, id, msg.AuthorID)
}

func (s *Store) storeMentions(ctx context.Context, tx *sql.Tx, messageID int64, body string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM message_mentions WHERE message_id = ?", messageID); err != nil {
		return err
	}

	roster, err := listUsers(ctx, tx)
	if err != nil {
		return err
	}

	for position, userID := range mention.Resolve(body, roster) {
		_, err := tx.ExecContext(ctx, "INSERT INTO message_mentions (message_id, user_id, position) VALUES (?, ?, ?)", messageID, userID, position)
		if err != nil {
			return err
		}
	}
	return nil
}

type messageHead struct {
	ID           int64
	Conversation string
	AuthorID     int64
	CreatedAt    time.Time
	Attachment   string
	IsPinned     bool
}

func loadHead(ctx context.Context, q queryer, id int64) (messageHead, error) {
	head := messageHead{ID: id}
	var createdAt int64
	var attachment sql.NullString
	err := q.QueryRowContext(ctx, "SELECT conversation_key, author_id, created_at, attachment, is_pinned FROM messages WHERE id = ?", id).
		Scan(&head.Conversation, &head.AuthorID, &createdAt, &attachment, &head.IsPinned)
	if errors.Is(err, sql.ErrNoRows) {
		return head, chaterr.NotFound("message %d", id)
	}
	head.CreatedAt = time.UnixMilli(createdAt).UTC()
	head.Attachment = attachment.String
	return head, err
}

// MessageConversation tells callers which conversation lock a message
// needs.
func (s *Store) MessageConversation(ctx context.Context, id int64) (string, error) {
	head, err := loadHead(ctx, s.db, id)
	return head.Conversation, err
}

// EditMessage replaces the body. Only the author may edit and only while
// now - created_at is within the edit window. The window is checked on
// every attempt.
func (s *Store) EditMessage(ctx context.Context, id int64, editorID int64, body string) (models.Message, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		head, err := loadHead(ctx, tx, id)
		if err != nil {
			return err
		}
		if head.AuthorID != editorID {
			return chaterr.Permission("only the author can edit message %d", id)
		}

		now := s.now()
		if now.Sub(head.CreatedAt) > s.editWindow {
			return chaterr.EditWindowExpired(id)
		}

		if err := validator.Body(body, head.Attachment != ""); err != nil {
			return chaterr.Validation("%s", err.Error())
		}

		revision, err := bumpRevision(ctx, tx, head.Conversation)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE messages SET body = ?, edited_at = ?, revision = ? WHERE id = ?", body, now.UnixMilli(), revision, id)
		if err != nil {
			return err
		}

		return s.storeMentions(ctx, tx, id, body)
	})
	if err != nil {
		return models.Message{}, err
	}

	return s.GetMessage(ctx, id, editorID)
}

// DeleteMessage removes the message with its reactions, bookmarks and
// mentions and leaves a tombstone for pollers. It returns every id removed,
// which includes replies under OrphanCascadeDelete.
func (s *Store) DeleteMessage(ctx context.Context, id int64, requesterID int64) ([]int64, error) {
	var deleted []int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		head, err := loadHead(ctx, tx, id)
		if err != nil {
			return err
		}
		if head.AuthorID != requesterID {
			return chaterr.Permission("only the author can delete message %d", id)
		}

		deleted = []int64{id}
		if s.orphanPolicy == OrphanCascadeDelete {
			replies, err := collectReplies(ctx, tx, head.Conversation, id)
			if err != nil {
				return err
			}
			deleted = append(deleted, replies...)
		}

		revision, err := bumpRevision(ctx, tx, head.Conversation)
		if err != nil {
			return err
		}

		now := s.now().UnixMilli()
		for _, messageID := range deleted {
			for _, statement := range []string{
				"DELETE FROM reactions WHERE message_id = ?",
				"DELETE FROM bookmarks WHERE message_id = ?",
				"DELETE FROM message_mentions WHERE message_id = ?",
				"DELETE FROM messages WHERE id = ?",
			} {
				if _, err := tx.ExecContext(ctx, statement, messageID); err != nil {
					return err
				}
			}

			_, err = tx.ExecContext(ctx,
				"INSERT INTO message_deletions (message_id, conversation_key, revision, deleted_at) VALUES (?, ?, ?, ?)",
				messageID, head.Conversation, revision, now)
			if err != nil {
				return err
			}
		}
		return nil
	})

	return deleted, err
}

func collectReplies(ctx context.Context, tx *sql.Tx, key string, rootID int64) ([]int64, error) {
	replies := []int64{}
	queue := []int64{rootID}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		children, err := scanIDs(tx.QueryContext(ctx, "SELECT id FROM messages WHERE conversation_key = ? AND parent_id = ? ORDER BY id", key, parent))
		if err != nil {
			return nil, err
		}
		replies = append(replies, children...)
		queue = append(queue, children...)
	}

	return replies, nil
}

func scanIDs(rows *sql.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetMessage loads one message as viewerID sees it.
func (s *Store) GetMessage(ctx context.Context, id int64, viewerID int64) (models.Message, error) {
	messages, err := s.reader().queryMessages(ctx, viewerID, "m.id = ?", "", id)
	if err != nil {
		return models.Message{}, err
	}
	if len(messages) == 0 {
		return models.Message{}, chaterr.NotFound("message %d", id)
	}
	return messages[0], nil
}

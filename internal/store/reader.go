package store

import (
	"context"
	"database/sql"
	"editorchat-backend/internal/models"
	"errors"
	"slices"
	"time"
)

// Reader runs read-only queries, either straight against the pool or
// inside a View snapshot.
type Reader struct {
	q   queryer
	now func() time.Time
}

type ConversationHead struct {
	LastMessageID int64
	Revision      int64
}

// Head returns the conversation's newest message id and revision. A
// conversation nobody has written to yet has a zero head.
func (r Reader) Head(ctx context.Context, key string) (ConversationHead, error) {
	state, err := readConversationState(ctx, r.q, key)
	if errors.Is(err, sql.ErrNoRows) {
		return ConversationHead{}, nil
	}
	return ConversationHead{LastMessageID: state.LastMessageID, Revision: state.Revision}, err
}

// After returns up to limit messages with id > afterID, oldest first.
func (r Reader) After(ctx context.Context, key string, afterID int64, limit int, viewerID int64) ([]models.Message, error) {
	return r.queryMessages(ctx, viewerID, "m.conversation_key = ? AND m.id > ?", "ORDER BY m.id ASC LIMIT ?", key, afterID, limit)
}

// Before returns the newest limit messages with id < beforeID (no bound
// when beforeID is 0), oldest first.
func (r Reader) Before(ctx context.Context, key string, beforeID int64, limit int, viewerID int64) ([]models.Message, error) {
	var messages []models.Message
	var err error
	if beforeID > 0 {
		messages, err = r.queryMessages(ctx, viewerID, "m.conversation_key = ? AND m.id < ?", "ORDER BY m.id DESC LIMIT ?", key, beforeID, limit)
	} else {
		messages, err = r.queryMessages(ctx, viewerID, "m.conversation_key = ?", "ORDER BY m.id DESC LIMIT ?", key, limit)
	}
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// MutatedSince returns messages the client already holds (id <= upToID)
// that changed after revision since, at most limit of the newest ones,
// oldest first. With a non-empty window only those ids are considered.
func (r Reader) MutatedSince(ctx context.Context, key string, upToID int64, since int64, window []int64, limit int, viewerID int64) ([]models.Message, error) {
	var messages []models.Message
	var err error
	if len(window) > 0 {
		args := append([]any{key, upToID, since}, int64Args(window)...)
		args = append(args, limit)
		messages, err = r.queryMessages(ctx, viewerID, "m.conversation_key = ? AND m.id <= ? AND m.revision > ? AND m.id IN ("+placeholders(len(window))+")", "ORDER BY m.id DESC LIMIT ?", args...)
	} else {
		messages, err = r.queryMessages(ctx, viewerID, "m.conversation_key = ? AND m.id <= ? AND m.revision > ?", "ORDER BY m.id DESC LIMIT ?", key, upToID, since, limit)
	}
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// DeletedSince returns up to limit of the newest tombstoned ids <= upToID
// deleted after revision since, ascending.
func (r Reader) DeletedSince(ctx context.Context, key string, upToID int64, since int64, limit int) ([]int64, error) {
	deleted, err := scanIDs(r.q.QueryContext(ctx,
		"SELECT message_id FROM message_deletions WHERE conversation_key = ? AND message_id <= ? AND revision > ? ORDER BY message_id DESC LIMIT ?",
		key, upToID, since, limit))
	if err != nil {
		return nil, err
	}

	slices.Reverse(deleted)
	return deleted, nil
}

// Missing returns the ids from window that no longer exist in the
// conversation.
func (r Reader) Missing(ctx context.Context, key string, window []int64) ([]int64, error) {
	if len(window) == 0 {
		return []int64{}, nil
	}

	args := append([]any{key}, int64Args(window)...)
	existing, err := scanIDs(r.q.QueryContext(ctx, "SELECT id FROM messages WHERE conversation_key = ? AND id IN ("+placeholders(len(window))+")", args...))
	if err != nil {
		return nil, err
	}

	present := make(map[int64]bool, len(existing))
	for _, id := range existing {
		present[id] = true
	}

	missing := []int64{}
	for _, id := range window {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r Reader) Replies(ctx context.Context, parentID int64, viewerID int64) ([]models.Message, error) {
	return r.queryMessages(ctx, viewerID, "m.parent_id = ?", "ORDER BY m.id ASC", parentID)
}

func (r Reader) Pinned(ctx context.Context, key string, viewerID int64) ([]models.Message, error) {
	return r.queryMessages(ctx, viewerID, "m.conversation_key = ? AND m.is_pinned = ?", "ORDER BY m.id DESC", key, true)
}

// Bookmarked returns the viewer's own bookmarks, newest message first.
func (r Reader) Bookmarked(ctx context.Context, viewerID int64) ([]models.Message, error) {
	return r.queryMessages(ctx, viewerID, "m.id IN (SELECT b.message_id FROM bookmarks b WHERE b.user_id = ?)", "ORDER BY m.id DESC", viewerID)
}

const messageSelect = `
	SELECT
		m.id,
		m.conversation_key,
		m.author_id,
		u.display_name,
		m.body,
		m.attachment,
		m.parent_id,
		m.is_pinned,
		m.edited_at,
		m.created_at,
		m.revision
	FROM
		messages m
	JOIN
		users u ON m.author_id = u.id
	WHERE
`

func (r Reader) queryMessages(ctx context.Context, viewerID int64, where string, suffix string, args ...any) ([]models.Message, error) {
	rows, err := r.q.QueryContext(ctx, messageSelect+where+" "+suffix, args...)
	if err != nil {
		return nil, err
	}

	messages := []models.Message{}
	index := make(map[int64]int)

	err = func() error {
		defer rows.Close()
		for rows.Next() {
			var msg models.Message
			var attachment sql.NullString
			var parent, editedAt sql.NullInt64
			var createdAt int64

			err := rows.Scan(&msg.ID, &msg.Conversation, &msg.AuthorID, &msg.Author, &msg.Body, &attachment, &parent, &msg.IsPinned, &editedAt, &createdAt, &msg.Revision)
			if err != nil {
				return err
			}

			msg.Attachment = attachment.String
			msg.ParentID = parent.Int64
			msg.CreatedAt = time.UnixMilli(createdAt).UTC()
			if editedAt.Valid {
				t := time.UnixMilli(editedAt.Int64).UTC()
				msg.EditedAt = &t
			}
			msg.Mentions = models.IDs{}
			msg.Reactions = []models.ReactionGroup{}

			index[msg.ID] = len(messages)
			messages = append(messages, msg)
		}
		return rows.Err()
	}()
	if err != nil || len(messages) == 0 {
		return messages, err
	}

	if err := r.hydrate(ctx, messages, index, viewerID); err != nil {
		return nil, err
	}
	return messages, nil
}

// hydrateChunk keeps every IN list well under the bound parameter limits of
// sqlite and mysql.
const hydrateChunk = 250

// hydrate fills mentions, reactions and the viewer's bookmark flag.
func (r Reader) hydrate(ctx context.Context, messages []models.Message, index map[int64]int, viewerID int64) error {
	ids := make([]int64, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}

	for batch := range slices.Chunk(ids, hydrateChunk) {
		if err := r.hydrateBatch(ctx, messages, index, batch, viewerID); err != nil {
			return err
		}
	}
	return nil
}

func (r Reader) hydrateBatch(ctx context.Context, messages []models.Message, index map[int64]int, ids []int64, viewerID int64) error {
	in := "(" + placeholders(len(ids)) + ")"

	rows, err := r.q.QueryContext(ctx, "SELECT message_id, user_id FROM message_mentions WHERE message_id IN "+in+" ORDER BY message_id, position", int64Args(ids)...)
	if err != nil {
		return err
	}
	err = eachRow(rows, func() error {
		var messageID, userID int64
		if err := rows.Scan(&messageID, &userID); err != nil {
			return err
		}
		msg := &messages[index[messageID]]
		msg.Mentions = append(msg.Mentions, userID)
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = r.q.QueryContext(ctx, "SELECT message_id, user_id, emoji FROM reactions WHERE message_id IN "+in+" ORDER BY message_id, created_at, user_id", int64Args(ids)...)
	if err != nil {
		return err
	}
	err = eachRow(rows, func() error {
		var messageID, userID int64
		var emoji []byte
		if err := rows.Scan(&messageID, &userID, &emoji); err != nil {
			return err
		}
		msg := &messages[index[messageID]]
		msg.Reactions = addReaction(msg.Reactions, string(emoji), userID, viewerID)
		return nil
	})
	if err != nil {
		return err
	}

	args := append([]any{viewerID}, int64Args(ids)...)
	rows, err = r.q.QueryContext(ctx, "SELECT message_id FROM bookmarks WHERE user_id = ? AND message_id IN "+in, args...)
	if err != nil {
		return err
	}
	return eachRow(rows, func() error {
		var messageID int64
		if err := rows.Scan(&messageID); err != nil {
			return err
		}
		messages[index[messageID]].Bookmarked = true
		return nil
	})
}

func addReaction(groups []models.ReactionGroup, emoji string, userID int64, viewerID int64) []models.ReactionGroup {
	for i := range groups {
		if groups[i].Emoji == emoji {
			groups[i].Count++
			groups[i].UserIDs = append(groups[i].UserIDs, userID)
			groups[i].Mine = groups[i].Mine || userID == viewerID
			return groups
		}
	}
	return append(groups, models.ReactionGroup{
		Emoji:   emoji,
		Count:   1,
		UserIDs: models.IDs{userID},
		Mine:    userID == viewerID,
	})
}

func eachRow(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}

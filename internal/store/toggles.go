package store

import (
	"context"
	"database/sql"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/validator"
	"errors"
)

// TogglePin flips the pin flag. Whether a conversation allows pins at all
// is decided by the caller.
func (s *Store) TogglePin(ctx context.Context, id int64, actorID int64) (models.Message, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		head, err := loadHead(ctx, tx, id)
		if err != nil {
			return err
		}

		revision, err := bumpRevision(ctx, tx, head.Conversation)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE messages SET is_pinned = ?, revision = ? WHERE id = ?", !head.IsPinned, revision, id)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}

	return s.GetMessage(ctx, id, actorID)
}

// ToggleBookmark flips the actor's private bookmark. Bookmarks are never
// shown to anyone else, so they don't advance the conversation revision.
func (s *Store) ToggleBookmark(ctx context.Context, id int64, actorID int64) (bool, error) {
	bookmarked := false

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadHead(ctx, tx, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM bookmarks WHERE user_id = ? AND message_id = ?", actorID, id)
		if err != nil {
			return err
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if removed > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO bookmarks (user_id, message_id, created_at) VALUES (?, ?, ?)", actorID, id, s.now().UnixMilli())
		if err != nil {
			if isUniqueViolation(err) {
				return chaterr.Conflict(err)
			}
			return err
		}
		bookmarked = true
		return nil
	})

	if errors.Is(err, chaterr.ErrConflict) {
		s.sugar.Debugf("Bookmark of message %d by user %d raced another insert", id, actorID)
		return true, nil
	}
	return bookmarked, err
}

// ToggleReaction removes the (message, actor, emoji) row when present and
// inserts it otherwise. A unique violation on the insert means a concurrent
// toggle got there first; the reaction is present, which is the outcome
// this call wanted, so it is not an error.
func (s *Store) ToggleReaction(ctx context.Context, id int64, actorID int64, emoji string) (bool, models.Message, error) {
	if err := validator.Emoji(emoji); err != nil {
		return false, models.Message{}, chaterr.Validation("%s", err.Error())
	}

	added := false

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		head, err := loadHead(ctx, tx, id)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?", id, actorID, []byte(emoji))
		if err != nil {
			return err
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if removed == 0 {
			_, err = tx.ExecContext(ctx, "INSERT INTO reactions (message_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?)", id, actorID, []byte(emoji), s.now().UnixMilli())
			if err != nil {
				if isUniqueViolation(err) {
					return chaterr.Conflict(err)
				}
				return err
			}
			added = true
		}

		revision, err := bumpRevision(ctx, tx, head.Conversation)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE messages SET revision = ? WHERE id = ?", revision, id)
		return err
	})

	if errors.Is(err, chaterr.ErrConflict) {
		s.sugar.Debugf("Reaction %s on message %d by user %d raced another insert", emoji, id, actorID)
		added, err = true, nil
	}
	if err != nil {
		return false, models.Message{}, err
	}

	msg, err := s.GetMessage(ctx, id, actorID)
	return added, msg, err
}

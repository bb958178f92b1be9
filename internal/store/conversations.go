package store

import (
	"context"
	"database/sql"
	"editorchat-backend/internal/models"
	"sort"
	"time"
)

// OpenDirect makes sure the direct conversation row exists so it shows up
// in both participants' lists before anyone writes.
func (s *Store) OpenDirect(ctx context.Context, ref models.ConversationRef) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := ensureConversation(ctx, tx, ref)
		return err
	})
}

// MarkRead moves the user's read marker forward. It never moves back.
func (s *Store) MarkRead(ctx context.Context, userID int64, key string, upToID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, "SELECT last_read_id FROM conversation_reads WHERE user_id = ? AND conversation_key = ?", userID, key).Scan(&current)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx, "INSERT INTO conversation_reads (user_id, conversation_key, last_read_id) VALUES (?, ?, ?)", userID, key, upToID)
			if err != nil && isUniqueViolation(err) {
				return nil
			}
			return err
		case err != nil:
			return err
		case upToID <= current:
			return nil
		}

		_, err = tx.ExecContext(ctx, "UPDATE conversation_reads SET last_read_id = ? WHERE user_id = ? AND conversation_key = ? AND last_read_id < ?", upToID, userID, key, upToID)
		return err
	})
}

// Conversations lists the given channels plus every direct conversation of
// the user, most recently active first, with unread counts. Channel
// visibility is decided by the caller.
func (s *Store) Conversations(ctx context.Context, user models.User, channels []models.Channel) ([]models.ConversationSummary, error) {
	summaries := []models.ConversationSummary{}
	byKey := make(map[string]int)
	order := make(map[string]int)

	for i, channel := range channels {
		key := models.ChannelConversation(channel.ID).Key()
		byKey[key] = len(summaries)
		order[key] = i
		summaries = append(summaries, models.ConversationSummary{
			Conversation: key,
			Title:        channel.Name,
			ChannelID:    channel.ID,
		})
	}

	rows, err := s.db.QueryContext(ctx, "SELECT conversation_key, kind, user_a, user_b, last_message_id, updated_at FROM conversations WHERE kind = ? OR user_a = ? OR user_b = ?", models.ConversationChannel, user.ID, user.ID)
	if err != nil {
		return nil, err
	}
	err = eachRow(rows, func() error {
		var key, kind string
		var userA, userB sql.NullInt64
		var lastMessageID, updatedAt int64
		if err := rows.Scan(&key, &kind, &userA, &userB, &lastMessageID, &updatedAt); err != nil {
			return err
		}

		i, ok := byKey[key]
		if !ok {
			if kind != models.ConversationDirect {
				return nil
			}
			ref := models.DirectConversation(userA.Int64, userB.Int64)
			i = len(summaries)
			byKey[key] = i
			order[key] = len(channels) + i
			summaries = append(summaries, models.ConversationSummary{
				Conversation: key,
				PeerID:       ref.Peer(user.ID),
			})
		}

		summaries[i].LastMessageID = lastMessageID
		if updatedAt > 0 {
			summaries[i].UpdatedAt = time.UnixMilli(updatedAt).UTC()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT
			m.conversation_key,
			COUNT(*)
		FROM
			messages m
		LEFT JOIN
			conversation_reads r ON r.conversation_key = m.conversation_key AND r.user_id = ?
		WHERE
			m.author_id <> ? AND m.id > COALESCE(r.last_read_id, 0)
		GROUP BY
			m.conversation_key
	`, user.ID, user.ID)
	if err != nil {
		return nil, err
	}
	err = eachRow(rows, func() error {
		var key string
		var unread int
		if err := rows.Scan(&key, &unread); err != nil {
			return err
		}
		if i, ok := byKey[key]; ok {
			summaries[i].Unread = unread
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	for i := range summaries {
		if summaries[i].PeerID != 0 {
			summaries[i].Title = names[summaries[i].PeerID]
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.LastMessageID != b.LastMessageID {
			return a.LastMessageID > b.LastMessageID
		}
		return order[a.Conversation] < order[b.Conversation]
	})

	return summaries, nil
}

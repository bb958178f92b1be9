package store

import (
	"context"
	"database/sql"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"errors"
	"sort"
)

func (s *Store) CreateChannel(ctx context.Context, channel models.Channel) (models.Channel, error) {
	channel.ID = s.ids.Generate()
	channel.AllowedRoles = normalizeRoles(channel.AllowedRoles)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO channels (id, slug, name, icon, color, sort_order, is_private) VALUES (?, ?, ?, ?, ?, ?, ?)",
			channel.ID, channel.Slug, channel.Name, channel.Icon, channel.Color, channel.SortOrder, channel.IsPrivate)
		if err != nil {
			if isUniqueViolation(err) {
				return chaterr.Validation("slug_taken")
			}
			return err
		}

		if err := insertChannelRoles(ctx, tx, channel.ID, channel.AllowedRoles); err != nil {
			return err
		}

		_, err = ensureConversation(ctx, tx, models.ChannelConversation(channel.ID))
		return err
	})

	return channel, err
}

func (s *Store) UpdateChannel(ctx context.Context, channel models.Channel) (models.Channel, error) {
	channel.AllowedRoles = normalizeRoles(channel.AllowedRoles)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE channels SET slug = ?, name = ?, icon = ?, color = ?, sort_order = ?, is_private = ? WHERE id = ?",
			channel.Slug, channel.Name, channel.Icon, channel.Color, channel.SortOrder, channel.IsPrivate, channel.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return chaterr.Validation("slug_taken")
			}
			return err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// mysql reports 0 for an update that changed nothing
			var exists bool
			if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM channels WHERE id = ?)", channel.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return chaterr.NotFound("channel %d", channel.ID)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM channel_roles WHERE channel_id = ?", channel.ID); err != nil {
			return err
		}
		return insertChannelRoles(ctx, tx, channel.ID, channel.AllowedRoles)
	})

	return channel, err
}

func insertChannelRoles(ctx context.Context, tx *sql.Tx, channelID int64, roles []string) error {
	for _, role := range roles {
		_, err := tx.ExecContext(ctx, "INSERT INTO channel_roles (channel_id, role) VALUES (?, ?)", channelID, role)
		if err != nil {
			return err
		}
	}
	return nil
}

func normalizeRoles(roles []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, role := range roles {
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

const channelColumns = "id, slug, name, icon, color, sort_order, is_private"

func (s *Store) GetChannel(ctx context.Context, id int64) (models.Channel, error) {
	var channel models.Channel
	err := s.db.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = ?", id).
		Scan(&channel.ID, &channel.Slug, &channel.Name, &channel.Icon, &channel.Color, &channel.SortOrder, &channel.IsPrivate)
	if errors.Is(err, sql.ErrNoRows) {
		return channel, chaterr.NotFound("channel %d", id)
	}
	if err != nil {
		return channel, err
	}

	channel.AllowedRoles, err = channelRoles(ctx, s.db, id)
	return channel, err
}

func channelRoles(ctx context.Context, q queryer, channelID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT role FROM channel_roles WHERE channel_id = ? ORDER BY role", channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListChannels returns every channel in display order. Callers filter with
// access.CanView.
func (s *Store) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+channelColumns+" FROM channels ORDER BY sort_order, name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []models.Channel{}
	index := make(map[int64]int)
	for rows.Next() {
		var channel models.Channel
		err := rows.Scan(&channel.ID, &channel.Slug, &channel.Name, &channel.Icon, &channel.Color, &channel.SortOrder, &channel.IsPrivate)
		if err != nil {
			return nil, err
		}
		channel.AllowedRoles = []string{}
		index[channel.ID] = len(channels)
		channels = append(channels, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roleRows, err := s.db.QueryContext(ctx, "SELECT channel_id, role FROM channel_roles ORDER BY role")
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var channelID int64
		var role string
		if err := roleRows.Scan(&channelID, &role); err != nil {
			return nil, err
		}
		if i, ok := index[channelID]; ok {
			channels[i].AllowedRoles = append(channels[i].AllowedRoles, role)
		}
	}

	return channels, roleRows.Err()
}

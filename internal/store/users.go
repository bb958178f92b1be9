package store

import (
	"context"
	"database/sql"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"errors"
	"time"
)

// CreateUser is used by seeding and tests. Accounts are normally managed by
// the portal that owns identity.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == 0 {
		user.ID = s.ids.Generate()
	}
	if user.Role == "" {
		user.Role = models.RoleAuthor
	}

	var lastSeen int64
	if !user.LastSeenAt.IsZero() {
		lastSeen = user.LastSeenAt.UnixMilli()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, role, password, last_seen_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.DisplayName, user.Role, user.Password, lastSeen)
	if err != nil {
		if isUniqueViolation(err) {
			return user, chaterr.Validation("email_taken")
		}
		return user, err
	}

	return user, nil
}

const userColumns = "id, email, display_name, role, password, last_seen_at"

func scanUser(scan func(dest ...any) error) (models.User, error) {
	var user models.User
	var lastSeen int64
	err := scan(&user.ID, &user.Email, &user.DisplayName, &user.Role, &user.Password, &lastSeen)
	if err != nil {
		return user, err
	}
	if lastSeen > 0 {
		user.LastSeenAt = time.UnixMilli(lastSeen).UTC()
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return user, chaterr.NotFound("user %d", id)
	}
	return user, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	user, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return user, chaterr.NotFound("user %s", email)
	}
	return user, err
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	return listUsers(ctx, s.db)
}

func listUsers(ctx context.Context, q queryer) ([]models.User, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY display_name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		user.Password = nil
		users = append(users, user)
	}

	return users, rows.Err()
}

func (s *Store) SetLastSeen(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET last_seen_at = ? WHERE id = ? AND last_seen_at < ?", at.UnixMilli(), userID, at.UnixMilli())
	return err
}

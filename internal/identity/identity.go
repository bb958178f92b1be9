package identity

import (
	"context"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/keyValue"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/presence"
	"editorchat-backend/internal/store"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	userCacheTTL = time.Minute
	// last_seen_at in the database is only a fallback for when the
	// key-value store was flushed, so it is written at most once a minute
	lastSeenWriteInterval = time.Minute
)

var ErrBadCredentials = errors.New("bad credentials")

// Provider answers who is making a request and who is around.
type Provider struct {
	store *store.Store
	sugar *zap.SugaredLogger
	now   func() time.Time
}

func New(s *store.Store, sugar *zap.SugaredLogger) *Provider {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &Provider{store: s, sugar: sugar, now: s.Now}
}

func userKey(id int64) string     { return fmt.Sprintf("user:%d", id) }
func lastSeenKey(id int64) string { return fmt.Sprintf("last_seen:%d", id) }
func writtenKey(id int64) string  { return fmt.Sprintf("last_seen_written:%d", id) }

// User returns the user with a short-lived cache in front of the database.
// A missing user is a NotFound error.
func (p *Provider) User(ctx context.Context, id int64) (models.User, error) {
	cached, err := keyValue.Get(ctx, userKey(id))
	if err != nil {
		return models.User{}, err
	}

	if cached != "" {
		var user models.User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			p.sugar.Debugf("User ID %d was found in cache", id)
			return user, nil
		}
		p.sugar.Warnf("Dropping unreadable cache entry for user ID %d", id)
	}

	user, err := p.store.GetUser(ctx, id)
	if err != nil {
		return user, err
	}
	user.Password = nil

	bytes, err := json.Marshal(user)
	if err != nil {
		return user, err
	}
	if err := keyValue.Set(ctx, userKey(id), string(bytes), userCacheTTL); err != nil {
		return user, err
	}

	p.sugar.Debugf("User ID %d was found in database and was cached", id)
	return user, nil
}

// Forget drops the cached copy of a user who signed out.
func (p *Provider) Forget(ctx context.Context, id int64) error {
	return keyValue.Del(ctx, userKey(id))
}

// Authenticate checks an email and password pair.
func (p *Provider) Authenticate(ctx context.Context, email string, password string) (models.User, error) {
	user, err := p.store.GetUserByEmail(ctx, email)
	if errors.Is(err, chaterr.ErrNotFound) {
		return user, ErrBadCredentials
	}
	if err != nil {
		return user, err
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		return models.User{}, ErrBadCredentials
	}

	user.Password = nil
	return user, nil
}

// Touch records that userID just did something. Every request counts.
func (p *Provider) Touch(ctx context.Context, userID int64) error {
	now := p.now()

	err := keyValue.Set(ctx, lastSeenKey(userID), strconv.FormatInt(now.UnixMilli(), 10), 2*presence.OnlineWindow)
	if err != nil {
		return err
	}

	due, err := keyValue.SetNX(ctx, writtenKey(userID), "y", lastSeenWriteInterval)
	if err != nil {
		return err
	}
	if due {
		return p.store.SetLastSeen(ctx, userID, now)
	}
	return nil
}

// LastSeen prefers the key-value store and falls back to the database
// value carried by user.
func (p *Provider) LastSeen(ctx context.Context, user models.User) (time.Time, error) {
	value, err := keyValue.Get(ctx, lastSeenKey(user.ID))
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return user.LastSeenAt, nil
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return user.LastSeenAt, nil
	}

	seen := time.UnixMilli(millis).UTC()
	if seen.Before(user.LastSeenAt) {
		return user.LastSeenAt, nil
	}
	return seen, nil
}

// Roster is every user with presence resolved at the current time.
func (p *Provider) Roster(ctx context.Context) ([]models.Member, error) {
	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		users[i].LastSeenAt, err = p.LastSeen(ctx, users[i])
		if err != nil {
			return nil, err
		}
	}

	return presence.Members(users, p.now()), nil
}

// Users is the plain roster used for mention completion.
func (p *Provider) Users(ctx context.Context) ([]models.User, error) {
	return p.store.ListUsers(ctx)
}

// HashPassword is used when seeding accounts.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), 12)
}

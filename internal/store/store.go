package store

import (
	"context"
	"database/sql"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/snowflake"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const DefaultEditWindow = 15 * time.Minute

type OrphanPolicy string

const (
	// OrphanKeep leaves replies in place when their parent is deleted.
	// Their ParentID then points at an id that only exists as a tombstone.
	OrphanKeep OrphanPolicy = "keep"
	// OrphanCascadeDelete deletes every reply below a deleted message.
	OrphanCascadeDelete OrphanPolicy = "cascadeDelete"
)

func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch OrphanPolicy(s) {
	case "", OrphanKeep:
		return OrphanKeep, nil
	case OrphanCascadeDelete:
		return OrphanCascadeDelete, nil
	}
	return "", fmt.Errorf("unknown orphan policy %q", s)
}

type Options struct {
	Sugar        *zap.SugaredLogger
	IDs          *snowflake.Node
	Now          func() time.Time
	EditWindow   time.Duration
	OrphanPolicy OrphanPolicy
}

// Store owns every table of the messaging subsystem. Writes that need to be
// ordered within a conversation (sends, revisions) expect the caller to hold
// that conversation's lock.
type Store struct {
	db           *sql.DB
	sugar        *zap.SugaredLogger
	ids          *snowflake.Node
	now          func() time.Time
	editWindow   time.Duration
	orphanPolicy OrphanPolicy
}

func New(db *sql.DB, opts Options) (*Store, error) {
	s := &Store{
		db:           db,
		sugar:        opts.Sugar,
		ids:          opts.IDs,
		now:          opts.Now,
		editWindow:   opts.EditWindow,
		orphanPolicy: opts.OrphanPolicy,
	}

	if s.sugar == nil {
		s.sugar = zap.NewNop().Sugar()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.editWindow <= 0 {
		s.editWindow = DefaultEditWindow
	}
	if s.orphanPolicy == "" {
		s.orphanPolicy = OrphanKeep
	}
	if s.ids == nil {
		ids, err := snowflake.NewNode(0, s.now)
		if err != nil {
			return nil, err
		}
		s.ids = ids
	}

	return s, nil
}

func (s *Store) EditWindow() time.Duration { return s.editWindow }

func (s *Store) Now() time.Time { return s.now() }

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.sugar.Errorf("Rolling back transaction: %v", rbErr)
		}
		return err
	}

	return tx.Commit()
}

// View runs fn against one consistent snapshot. It never commits anything.
func (s *Store) View(ctx context.Context, fn func(r Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.sugar.Errorf("Closing read transaction: %v", err)
		}
	}()

	return fn(Reader{q: tx, now: s.now})
}

func (s *Store) reader() Reader {
	return Reader{q: s.db, now: s.now}
}

func isUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// primary code only, when extended codes are off
			msg := sqliteErr.Error()
			return strings.Contains(msg, "UNIQUE constraint failed")
		}
	}

	return false
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// ensureConversation creates the conversations row on first use and
// returns its current head.
func ensureConversation(ctx context.Context, tx *sql.Tx, ref models.ConversationRef) (conversationState, error) {
	state, err := readConversationState(ctx, tx, ref.Key())
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return state, err
	}

	var channelID, userA, userB sql.NullInt64
	if ref.IsChannel() {
		var exists bool
		err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM channels WHERE id = ?)", ref.ChannelID).Scan(&exists)
		if err != nil {
			return state, err
		}
		if !exists {
			return state, chaterr.Validation("unknown conversation %s", ref.Key())
		}
		channelID = sql.NullInt64{Int64: ref.ChannelID, Valid: true}
	} else {
		userA = sql.NullInt64{Int64: ref.UserA, Valid: true}
		userB = sql.NullInt64{Int64: ref.UserB, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO conversations (conversation_key, kind, channel_id, user_a, user_b, last_message_id, revision, updated_at) VALUES (?, ?, ?, ?, ?, 0, 0, 0)",
		ref.Key(), ref.Kind, channelID, userA, userB)
	if err != nil && !isUniqueViolation(err) {
		return state, err
	}

	return readConversationState(ctx, tx, ref.Key())
}

type conversationState struct {
	Key           string
	LastMessageID int64
	Revision      int64
	UpdatedAt     int64
}

func readConversationState(ctx context.Context, q queryer, key string) (conversationState, error) {
	state := conversationState{Key: key}
	err := q.QueryRowContext(ctx, "SELECT last_message_id, revision, updated_at FROM conversations WHERE conversation_key = ?", key).
		Scan(&state.LastMessageID, &state.Revision, &state.UpdatedAt)
	return state, err
}

// bumpRevision advances the conversation's change counter and returns the
// new value. Every visible mutation stamps its rows with it.
func bumpRevision(ctx context.Context, tx *sql.Tx, key string) (int64, error) {
	_, err := tx.ExecContext(ctx, "UPDATE conversations SET revision = revision + 1 WHERE conversation_key = ?", key)
	if err != nil {
		return 0, err
	}

	var revision int64
	err = tx.QueryRowContext(ctx, "SELECT revision FROM conversations WHERE conversation_key = ?", key).Scan(&revision)
	if err != nil {
		return 0, err
	}
	return revision, nil
}

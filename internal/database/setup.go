package database

import (
	"database/sql"
	"editorchat-backend/internal/models"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SqliteDSN enables foreign keys and WAL on every connection the pool
// opens, not just the first one.
func SqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)", path)
}

func readPragmaValues(sugar *zap.SugaredLogger, db *sql.DB) error {
	var foreignKeysValue bool
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysValue)
	if err != nil {
		return err
	}

	var journalModeValue string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalModeValue)
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronousValue)
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Infof("sqlite PRAGMA foreign_keys: %t, journal_mode: %s, synchronous: %s", foreignKeysValue, journalModeValue, synchronousValueStr)

	if !foreignKeysValue {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

func Setup(sugar *zap.SugaredLogger, cfg *models.ConfigFile) (*sql.DB, error) {
	if cfg.SelfContained {
		sugar.Info("Connecting to database sqlite...")
		return OpenSqlite(sugar, "./database.db")
	}

	sugar.Info("Connecting to database mysql/mariadb...")

	db, err := sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase))
	if err != nil {
		return db, err
	}

	db.SetMaxOpenConns(10)

	err = setupTables(db)
	if err != nil {
		return db, err
	}

	return db, nil
}

func OpenSqlite(sugar *zap.SugaredLogger, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", SqliteDSN(path))
	if err != nil {
		return db, err
	}

	// there can be sqlite busy errors if this is not set to 1
	db.SetMaxOpenConns(1)

	err = readPragmaValues(sugar, db)
	if err != nil {
		return db, err
	}

	err = setupTables(db)
	if err != nil {
		return db, err
	}

	return db, nil
}

func setupTables(db *sql.DB) error {
	for _, statement := range schema {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}

// Timestamps are unix milliseconds so sqlite and mysql scan them the same
// way. Emoji are VARBINARY so mysql collations don't fold different emoji
// into one key.
var schema = []string{
	`
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			email VARCHAR(64) NOT NULL UNIQUE,
			display_name VARCHAR(64) NOT NULL,
			role VARCHAR(32) NOT NULL,
			password BINARY(60),
			last_seen_at BIGINT NOT NULL DEFAULT 0
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS channels (
			id BIGINT PRIMARY KEY,
			slug VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(64) NOT NULL,
			icon VARCHAR(64) NOT NULL DEFAULT '',
			color VARCHAR(7) NOT NULL DEFAULT '',
			sort_order INT NOT NULL DEFAULT 0,
			is_private BOOLEAN NOT NULL DEFAULT 0
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS channel_roles (
			channel_id BIGINT NOT NULL,
			role VARCHAR(32) NOT NULL,
			PRIMARY KEY (channel_id, role),
			FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS conversations (
			conversation_key VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(8) NOT NULL,
			channel_id BIGINT,
			user_a BIGINT,
			user_b BIGINT,
			last_message_id BIGINT NOT NULL DEFAULT 0,
			revision BIGINT NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL DEFAULT 0,
			FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS messages (
			id BIGINT PRIMARY KEY,
			conversation_key VARCHAR(64) NOT NULL,
			author_id BIGINT NOT NULL,
			parent_id BIGINT,
			body TEXT NOT NULL,
			attachment TEXT,
			is_pinned BOOLEAN NOT NULL DEFAULT 0,
			edited_at BIGINT,
			created_at BIGINT NOT NULL,
			revision BIGINT NOT NULL,
			UNIQUE (conversation_key, id),
			FOREIGN KEY (conversation_key) REFERENCES conversations(conversation_key) ON DELETE CASCADE,
			FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS message_mentions (
			message_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (message_id, user_id),
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS reactions (
			message_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			emoji VARBINARY(128) NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (message_id, user_id, emoji),
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS bookmarks (
			user_id BIGINT NOT NULL,
			message_id BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (user_id, message_id),
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS message_deletions (
			message_id BIGINT PRIMARY KEY,
			conversation_key VARCHAR(64) NOT NULL,
			revision BIGINT NOT NULL,
			deleted_at BIGINT NOT NULL,
			UNIQUE (conversation_key, message_id)
		);
	`,
	`
		CREATE TABLE IF NOT EXISTS conversation_reads (
			user_id BIGINT NOT NULL,
			conversation_key VARCHAR(64) NOT NULL,
			last_read_id BIGINT NOT NULL,
			PRIMARY KEY (user_id, conversation_key),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
	`,
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers. "postgres" is served by pgx's database/sql driver.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Database owns the connection pool and knows the placeholder style of its driver.
type Database struct {
	db     *sql.DB
	driver string
}

// NewDatabase opens dsn with driver, verifies the connection and creates the schema.
func NewDatabase(driver, dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("database path is required")
	}

	var sqlDriver string
	switch driver {
	case "", DriverSQLite:
		driver, sqlDriver = DriverSQLite, "sqlite3"
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases coherent and serializes writers.
		db.SetMaxOpenConns(1)
	}

	// Verify we can actually connect to the database
	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	d := &Database{db: db, driver: driver}

	// Try to create tables - if this fails, the database is not usable
	if err := d.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("create tables failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	return d, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		totp_secret TEXT,
		totp_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		locked_until BIGINT,
		last_login BIGINT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		phone_number TEXT NOT NULL DEFAULT '',
		sms_opt_in BOOLEAN NOT NULL DEFAULT FALSE,
		timezone_name TEXT NOT NULL DEFAULT 'UTC',
		verified_at BIGINT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_by TEXT REFERENCES users(id) ON DELETE SET NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		scheduled_for BIGINT,
		total_sent INTEGER NOT NULL DEFAULT 0,
		total_delivered INTEGER NOT NULL DEFAULT 0,
		total_failed INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS campaign_targets (
		campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (campaign_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		direction TEXT NOT NULL,
		body TEXT NOT NULL,
		provider_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		raw_provider_status TEXT NOT NULL DEFAULT '',
		campaign_id TEXT REFERENCES campaigns(id) ON DELETE SET NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		delivered_at BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		actor_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		target_user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		message_id TEXT REFERENCES messages(id) ON DELETE SET NULL,
		campaign_id TEXT REFERENCES campaigns(id) ON DELETE SET NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_phone_number ON profiles(phone_number)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_sms_opt_in ON profiles(sms_opt_in)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_direction ON messages(direction)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_provider_id ON messages(provider_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)`,
}

func (d *Database) migrate() error {
	if d.driver == DriverSQLite {
		if _, err := d.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	for _, stmt := range schema {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// GetDB exposes the pool, mainly for tests and health checks.
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// Driver returns the configured driver name.
func (d *Database) Driver() string {
	return d.driver
}

// Rebind rewrites "?" placeholders into the driver's style.
func (d *Database) Rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *Database) Close() error {
	if d == nil {
		return errors.New("database is nil")
	}

	if d.db == nil {
		return errors.New("database already closed")
	}

	err := d.db.Close()
	d.db = nil
	return err
}

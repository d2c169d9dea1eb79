// Package identity keeps a local user record for every subject the gate has
// verified. Records are created on first sight of a subject and updated
// when the provider's profile drifts from the stored one; the core never
// deletes them.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Drivers for the two storage backends the API runs against.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no local user exists for a subject.
var ErrNotFound = errors.New("local user not found")

// User is the persisted identity record, keyed by the token subject.
type User struct {
	ID          string
	Subject     string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence surface the synchronizer needs.
type Store interface {
	BySubject(ctx context.Context, subject string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}

// Driver names database/sql drivers the SQL store supports.
type Driver string

const (
	SQLite     Driver = "sqlite3"
	PostgreSQL Driver = "postgres"
)

// DetectDriver guesses the driver from a connection string. Anything that
// does not look like a postgres DSN is treated as a sqlite path.
func DetectDriver(dsn string) Driver {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") {
		return PostgreSQL
	}
	return SQLite
}

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	db     *sql.DB
	driver Driver
}

// Open opens a connection for the given DSN, detects the driver, and pings.
func Open(dsn string) (*SQLStore, error) {
	driver := DetectDriver(dsn)
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == SQLite {
		// sqlite does not benefit from pooling and misbehaves with it.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", driver, err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// NewSQLStore wraps an already-open database handle.
func NewSQLStore(db *sql.DB, driver Driver) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// Migrate creates the users table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			subject      TEXT NOT NULL UNIQUE,
			email        TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMP NOT NULL,
			updated_at   TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) BySubject(ctx context.Context, subject string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject, email, display_name, created_at, updated_at
		 FROM users WHERE subject = `+s.placeholder(1),
		subject)

	u := &User{}
	err := row.Scan(&u.ID, &u.Subject, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: subject %q", ErrNotFound, subject)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by subject: %w", err)
	}
	return u, nil
}

func (s *SQLStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, subject, email, display_name, created_at, updated_at)
		 VALUES (`+s.placeholders(6)+`)`,
		u.ID, u.Subject, u.Email, u.DisplayName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user %q: %w", u.Subject, err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = `+s.placeholder(1)+
			`, display_name = `+s.placeholder(2)+
			`, updated_at = `+s.placeholder(3)+
			` WHERE subject = `+s.placeholder(4),
		u.Email, u.DisplayName, u.UpdatedAt, u.Subject)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", u.Subject, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: subject %q", ErrNotFound, u.Subject)
	}
	return nil
}

// placeholder returns the positional parameter marker for the driver.
func (s *SQLStore) placeholder(position int) string {
	if s.driver == PostgreSQL {
		return fmt.Sprintf("$%d", position)
	}
	return "?"
}

func (s *SQLStore) placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = s.placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}

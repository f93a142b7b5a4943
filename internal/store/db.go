package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// DB wraps a SQLite database connection for the session-owned crew.db.
type DB struct {
	*sql.DB

	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{
		DB:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}, nil
}

// SetClock overrides the clock used to stamp server timestamps. Used by tests.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	db.now = now
	db.mu.Unlock()
}

// nextID returns a time-sortable message id and the server timestamp it encodes.
func (db *DB) nextID() (string, time.Time, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	now := db.now().UTC().Truncate(time.Millisecond)
	id, err := ulid.New(ulid.Timestamp(now), db.entropy)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate message id: %w", err)
	}
	return id.String(), now, nil
}

func (db *DB) clock() time.Time {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.now()
}

// Stats holds row counts reported by the session service.
type Stats struct {
	Conversations int
	Messages      int
	Members       int
}

// Stats returns table row counts.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM crew_members)`).Scan(&s.Conversations, &s.Messages, &s.Members)
	return s, err
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

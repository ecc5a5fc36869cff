package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"github.com/vovakirdan/canvaschat/internal/identity"
	"github.com/vovakirdan/canvaschat/internal/store"
	"github.com/vovakirdan/canvaschat/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS profile (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	keyUserID      = "user_id"
	keyDisplayName = "username"
	keyColor       = "user_color"
	keyRooms       = "user_rooms"
)

// SQLiteStore implements store.Store as a key-value table in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the profile database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Profile returns everything stored about the local participant.
func (s *SQLiteStore) Profile(ctx context.Context) (*store.Profile, error) {
	var p store.Profile
	var err error

	if p.UserID, err = s.get(ctx, keyUserID); err != nil {
		return nil, err
	}
	if p.DisplayName, err = s.get(ctx, keyDisplayName); err != nil {
		return nil, err
	}
	if p.Color, err = s.get(ctx, keyColor); err != nil {
		return nil, err
	}
	if p.Rooms, err = s.Rooms(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureUserID returns the stored identity id or creates one.
func (s *SQLiteStore) EnsureUserID(ctx context.Context) (string, error) {
	id, err := s.get(ctx, keyUserID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = utils.NewID()
	if err := s.set(ctx, keyUserID, id); err != nil {
		return "", err
	}
	return id, nil
}

// SetDisplayName stores the trimmed name or clears it when empty.
func (s *SQLiteStore) SetDisplayName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.del(ctx, keyDisplayName)
	}
	return s.set(ctx, keyDisplayName, name)
}

// SetColor stores color if it belongs to the palette.
func (s *SQLiteStore) SetColor(ctx context.Context, color string) (bool, error) {
	if !identity.IsPaletteColor(color) {
		return false, nil
	}
	if err := s.set(ctx, keyColor, color); err != nil {
		return false, err
	}
	return true, nil
}

// Rooms returns recently joined rooms. A corrupt entry reads as empty.
func (s *SQLiteStore) Rooms(ctx context.Context) ([]string, error) {
	raw, err := s.get(ctx, keyRooms)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return []string{}, nil
	}

	var rooms []string
	if err := json.Unmarshal([]byte(raw), &rooms); err != nil {
		return []string{}, nil
	}
	return lo.Compact(rooms), nil
}

// AddRoom records roomID as the most recently joined room.
func (s *SQLiteStore) AddRoom(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return store.ErrInvalidRoom
	}

	rooms, err := s.Rooms(ctx)
	if err != nil {
		return err
	}
	return s.setRooms(ctx, store.PushRoom(rooms, roomID))
}

// RemoveRoom drops roomID from the list.
func (s *SQLiteStore) RemoveRoom(ctx context.Context, roomID string) error {
	rooms, err := s.Rooms(ctx)
	if err != nil {
		return err
	}
	return s.setRooms(ctx, lo.Without(rooms, roomID))
}

// ClearRooms empties the list.
func (s *SQLiteStore) ClearRooms(ctx context.Context) error {
	return s.del(ctx, keyRooms)
}

// Clear forgets the identity.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profile WHERE key IN (?, ?, ?)`,
		keyUserID, keyDisplayName, keyColor)
	if err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) setRooms(ctx context.Context, rooms []string) error {
	data, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("marshal rooms: %w", err)
	}
	return s.set(ctx, keyRooms, string(data))
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM profile WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO profile (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profile WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

var _ store.Store = (*SQLiteStore)(nil)

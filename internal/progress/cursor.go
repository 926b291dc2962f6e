package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const cursorBucket = "scan_cursors"

// ErrNoCursor is returned when no scan has been recorded for a key.
var ErrNoCursor = errors.New("no scan cursor recorded")

// Cursor is the last fully processed block of a scan.
type Cursor struct {
	LastBlock uint64    `json:"lastBlock"`
	Confirmed int       `json:"confirmed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Manager persists scan cursors in a bbolt database so interrupted scans can
// resume after their last persisted window.
type Manager struct {
	db  *bolt.DB
	log logrus.FieldLogger
}

// Open opens (or creates) the cursor database at path.
func Open(path string, log logrus.FieldLogger) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening progress db %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cursorBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing progress db: %w", err)
	}

	log = log.WithField("module", "progress")
	log.WithField("path", path).Debug("Progress database opened")
	return &Manager{db: db, log: log}, nil
}

// Close closes the database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Get returns the cursor stored under key, or ErrNoCursor.
func (m *Manager) Get(key string) (Cursor, error) {
	var c Cursor
	err := m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(cursorBucket)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w for %s", ErrNoCursor, key)
		}
		return json.Unmarshal(data, &c)
	})
	return c, err
}

// Advance records lastBlock for key. A cursor never moves backwards.
func (m *Manager) Advance(key string, lastBlock uint64, confirmed int) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cursorBucket))

		var cur Cursor
		if data := b.Get([]byte(key)); data != nil {
			if err := json.Unmarshal(data, &cur); err != nil {
				return err
			}
			if lastBlock < cur.LastBlock {
				m.log.WithFields(logrus.Fields{"key": key, "current": cur.LastBlock, "requested": lastBlock}).
					Debug("Ignoring cursor rewind")
				return nil
			}
		}

		data, err := json.Marshal(Cursor{
			LastBlock: lastBlock,
			Confirmed: cur.Confirmed + confirmed,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Reset deletes the cursor for key.
func (m *Manager) Reset(key string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cursorBucket)).Delete([]byte(key))
	})
}

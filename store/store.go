package store

import (
	"encoding/json"
	"fmt"
	"music-player-go/logcolors"
	"music-player-go/player"
	"music-player-go/stats"
	"music-player-go/utils"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	sessionBucket = "session"
	statsBucket   = "stats"
	lyricsBucket  = "lyrics"

	sessionKey = "player"
	statsKey   = "server_stats"
)

// Store persists the player session, cumulative stats and cached lyrics
// in a single BoltDB file
type Store struct {
	db          *bolt.DB
	dbPath      string
	compression bool
	mu          sync.Mutex

	snapshot func() player.Snapshot
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// sessionEntry wraps the encoded snapshot so compressed and plain values
// can be told apart after the flag changes
type sessionEntry struct {
	Compressed bool      `json:"compressed"`
	Value      string    `json:"value"`
	SavedAt    time.Time `json:"savedAt"`
}

// Open opens (or creates) the database at dbPath
func Open(dbPath string, compression bool) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %v", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database at %s (size: %d bytes)", logcolors.LogStoreInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database at %s", logcolors.LogStoreInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{sessionBucket, statsBucket, lyricsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %v", err)
	}

	log.Infof("%s State store ready at %s (compression: %v)", logcolors.LogStore, dbPath, compression)
	return &Store{
		db:          db,
		dbPath:      dbPath,
		compression: compression,
		stopChan:    make(chan struct{}),
	}, nil
}

// SaveSession writes the player snapshot
func (s *Store) SaveSession(snap player.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %v", err)
	}

	entry := sessionEntry{Value: string(data), SavedAt: time.Now()}
	if s.compression {
		compressed, err := utils.CompressString(entry.Value)
		if err != nil {
			return fmt.Errorf("failed to compress session: %v", err)
		}
		entry.Value = compressed
		entry.Compressed = true
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if b == nil {
			return fmt.Errorf("session bucket not found")
		}
		return b.Put([]byte(sessionKey), raw)
	})
}

// LoadSession returns the last saved snapshot; ok is false when none exists
func (s *Store) LoadSession() (snap player.Snapshot, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(sessionKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return snap, false, err
	}

	var entry sessionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return snap, false, fmt.Errorf("failed to unmarshal session: %v", err)
	}

	value := entry.Value
	if entry.Compressed {
		value, err = utils.DecompressString(value)
		if err != nil {
			return snap, false, fmt.Errorf("failed to decompress session: %v", err)
		}
	}

	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		return snap, false, fmt.Errorf("failed to decode session: %v", err)
	}

	log.Infof("%s Loaded session saved at %s (%d queued tracks)",
		logcolors.LogStore, entry.SavedAt.Format(time.RFC3339), len(snap.Playlist))
	return snap, true, nil
}

// ClearSession removes the saved snapshot
func (s *Store) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(sessionKey))
	})
}

// SaveStats persists the global counters
func (s *Store) SaveStats() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted := stats.Get().Export()
	persisted.LastSaved = time.Now()

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %v", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucket))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %v", err)
	}
	return nil
}

// LoadStats applies persisted counters to the global stats
func (s *Store) LoadStats() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted stats.PersistedStats
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %v", err)
	}
	if found {
		stats.Get().Import(persisted)
	}
	return nil
}

// Save writes the current session (when a snapshot source is set) and stats
func (s *Store) Save() error {
	if s.snapshot != nil {
		if err := s.SaveSession(s.snapshot()); err != nil {
			return err
		}
	}
	return s.SaveStats()
}

// StartAutoSave saves every interval until Close. snapshot supplies the
// session to write and may be nil to persist stats only.
func (s *Store) StartAutoSave(interval time.Duration, snapshot func() player.Snapshot) {
	s.snapshot = snapshot
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Failed to auto-save: %v", logcolors.LogStoreSave, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStoreSave, interval)
}

// DB exposes the underlying handle to the lyrics cache
func (s *Store) DB() *bolt.DB {
	return s.db
}

// Close stops auto-save, writes a final save and closes the database
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	if err := s.Save(); err != nil {
		log.Warnf("%s Failed to save on close: %v", logcolors.LogStoreSave, err)
	} else {
		log.Infof("%s State saved on shutdown", logcolors.LogStoreSave)
	}

	return s.db.Close()
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"music-player-go/logcolors"
	"music-player-go/lyrics"
	"music-player-go/stats"
	"music-player-go/utils"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// CacheEntry is one cached lyric payload. Value holds the JSON payload,
// gzipped and base64 encoded when compression is on.
type CacheEntry struct {
	Value      string    `json:"value"`
	Compressed bool      `json:"compressed"`
	CachedAt   time.Time `json:"cachedAt"`
}

// LyricsCache keeps lyric payloads in memory backed by the lyrics bucket
type LyricsCache struct {
	db          *bolt.DB
	memCache    sync.Map
	compression bool
	ttl         time.Duration
	now         func() time.Time
}

// NewLyricsCache preloads every entry of the lyrics bucket. A zero ttl
// keeps entries forever.
func NewLyricsCache(s *Store, ttl time.Duration) *LyricsCache {
	lc := &LyricsCache{
		db:          s.DB(),
		compression: s.compression,
		ttl:         ttl,
		now:         time.Now,
	}
	if err := lc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload lyrics cache: %v", logcolors.LogStore, err)
	}
	return lc
}

func (lc *LyricsCache) loadToMemory() error {
	count := 0
	err := lc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(lyricsBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Skipping unreadable lyrics entry %s: %v", logcolors.LogStore, string(k), err)
				return nil
			}
			lc.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d cached lyrics", logcolors.LogStore, count)
	return nil
}

func (lc *LyricsCache) expired(entry CacheEntry) bool {
	return lc.ttl > 0 && lc.now().Sub(entry.CachedAt) > lc.ttl
}

// Get returns the cached payload for id
func (lc *LyricsCache) Get(id string) (*lyrics.Payload, bool) {
	v, ok := lc.memCache.Load(id)
	if !ok {
		return nil, false
	}
	entry := v.(CacheEntry)
	if lc.expired(entry) {
		lc.Delete(id)
		return nil, false
	}

	value := entry.Value
	if entry.Compressed {
		decompressed, err := utils.DecompressString(value)
		if err != nil {
			log.Errorf("%s Error decompressing lyrics for %s: %v", logcolors.LogStore, id, err)
			return nil, false
		}
		value = decompressed
	}

	var payload lyrics.Payload
	if err := json.Unmarshal([]byte(value), &payload); err != nil {
		log.Errorf("%s Error decoding lyrics for %s: %v", logcolors.LogStore, id, err)
		return nil, false
	}
	return &payload, true
}

// Set stores payload in memory and on disk
func (lc *LyricsCache) Set(id string, payload *lyrics.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	entry := CacheEntry{Value: string(data), CachedAt: lc.now()}
	if lc.compression {
		compressed, err := utils.CompressString(entry.Value)
		if err != nil {
			log.Errorf("%s Error compressing lyrics for %s: %v", logcolors.LogStore, id, err)
			return err
		}
		entry.Value = compressed
		entry.Compressed = true
	}

	lc.memCache.Store(id, entry)

	return lc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(lyricsBucket))
		if b == nil {
			return fmt.Errorf("lyrics bucket not found")
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), raw)
	})
}

// Delete removes id from the cache
func (lc *LyricsCache) Delete(id string) error {
	lc.memCache.Delete(id)

	return lc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(lyricsBucket))
		if b == nil {
			return fmt.Errorf("lyrics bucket not found")
		}
		return b.Delete([]byte(id))
	})
}

// Clear removes every cached payload
func (lc *LyricsCache) Clear() error {
	lc.memCache.Range(func(key, value interface{}) bool {
		lc.memCache.Delete(key)
		return true
	})

	return lc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(lyricsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(lyricsBucket))
		return err
	})
}

// Stats returns the number of entries and their approximate size
func (lc *LyricsCache) Stats() (numKeys int, sizeInKB int) {
	lc.memCache.Range(func(k, v interface{}) bool {
		entry := v.(CacheEntry)
		numKeys++
		sizeInKB += len(k.(string)) + len(entry.Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// CachedFetcher serves lyric payloads from a LyricsCache before asking next
type CachedFetcher struct {
	next  lyrics.Fetcher
	cache *LyricsCache
}

var (
	_ lyrics.Fetcher     = (*CachedFetcher)(nil)
	_ lyrics.Invalidator = (*CachedFetcher)(nil)
)

func NewCachedFetcher(next lyrics.Fetcher, cache *LyricsCache) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache}
}

func (f *CachedFetcher) FetchLyrics(ctx context.Context, id string) (*lyrics.Payload, error) {
	if payload, ok := f.cache.Get(id); ok {
		stats.Get().RecordLyricsCacheHit()
		log.Debugf("%s Cache hit for %s", logcolors.LogLyricsFetch, logcolors.Track(id))
		return payload, nil
	}
	stats.Get().RecordLyricsCacheMiss()

	payload, err := f.next.FetchLyrics(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = &lyrics.Payload{}
	}
	if err := f.cache.Set(id, payload); err != nil {
		log.Warnf("%s Failed to cache lyrics for %s: %v", logcolors.LogStore, logcolors.Track(id), err)
	}
	return payload, nil
}

// Invalidate drops id so the next fetch goes upstream
func (f *CachedFetcher) Invalidate(id string) {
	if err := f.cache.Delete(id); err != nil {
		log.Warnf("%s Failed to invalidate lyrics for %s: %v", logcolors.LogStore, logcolors.Track(id), err)
	}
}

package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"music-player-go/logcolors"
	"music-player-go/services/catalog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Preferences are the user-facing settings kept in the TOML file
type Preferences struct {
	AudioQuality string       `toml:"audio_quality" json:"audioQuality"`
	Language     string       `toml:"language" json:"language"`
	Lyrics       LyricDisplay `toml:"lyrics" json:"lyrics"`
}

// LyricDisplay toggles the sub-lines shown under each lyric line
type LyricDisplay struct {
	ShowTranslation     bool `toml:"show_translation" json:"showTranslation"`
	ShowTransliteration bool `toml:"show_transliteration" json:"showTransliteration"`
}

// Defaults returns the preferences used when the file is missing
func Defaults(quality string) Preferences {
	if !catalog.ValidQuality(quality) {
		quality = catalog.QualityExHigh
	}
	return Preferences{
		AudioQuality: quality,
		Language:     "zh",
		Lyrics:       LyricDisplay{ShowTranslation: true},
	}
}

// Validate rejects unknown quality levels and fills an empty language
func (p *Preferences) Validate() error {
	if !catalog.ValidQuality(p.AudioQuality) {
		return fmt.Errorf("unknown audio quality %q", p.AudioQuality)
	}
	if p.Language == "" {
		p.Language = "zh"
	}
	return nil
}

// Settings holds the current preferences and keeps them in sync with
// the file on disk
type Settings struct {
	mu       sync.RWMutex
	path     string
	prefs    Preferences
	onChange []func(Preferences)

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// Load reads path, falling back to defaults when it does not exist yet
func Load(path string, defaults Preferences) (*Settings, error) {
	s := &Settings{path: path, prefs: defaults}

	prefs, err := readFile(path, defaults)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("%s No preferences at %s, using defaults", logcolors.LogSettings, path)
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	s.prefs = prefs
	log.Infof("%s Loaded preferences from %s (quality: %s, language: %s)",
		logcolors.LogSettings, path, prefs.AudioQuality, prefs.Language)
	return s, nil
}

func readFile(path string, defaults Preferences) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preferences{}, err
	}

	prefs := defaults
	if _, err := toml.Decode(string(data), &prefs); err != nil {
		return Preferences{}, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if err := prefs.Validate(); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

// Get returns a copy of the current preferences
func (s *Settings) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Settings) AudioQuality() string {
	return s.Get().AudioQuality
}

func (s *Settings) Language() string {
	return s.Get().Language
}

func (s *Settings) ShowTranslation() bool {
	return s.Get().Lyrics.ShowTranslation
}

func (s *Settings) ShowTransliteration() bool {
	return s.Get().Lyrics.ShowTransliteration
}

// OnChange registers fn to run after every successful update or reload
func (s *Settings) OnChange(fn func(Preferences)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Update applies fn to a copy of the preferences, validates the result
// and writes it to disk
func (s *Settings) Update(fn func(*Preferences)) (Preferences, error) {
	s.mu.Lock()
	next := s.prefs
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Preferences{}, err
	}
	if err := writeFile(s.path, next); err != nil {
		s.mu.Unlock()
		return Preferences{}, err
	}
	s.prefs = next
	listeners := append([]func(Preferences){}, s.onChange...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next, nil
}

func writeFile(path string, prefs Preferences) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(prefs); err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tmp, path)
}

// reload re-reads the file after an external edit. A broken file keeps
// the previous preferences.
func (s *Settings) reload() {
	s.mu.RLock()
	current := s.prefs
	s.mu.RUnlock()

	prefs, err := readFile(s.path, current)
	if err != nil {
		log.Warnf("%s Ignoring preferences change: %v", logcolors.LogSettings, err)
		return
	}
	if prefs == current {
		return
	}

	s.mu.Lock()
	s.prefs = prefs
	listeners := append([]func(Preferences){}, s.onChange...)
	s.mu.Unlock()

	log.Infof("%s Reloaded preferences (quality: %s, language: %s)",
		logcolors.LogSettings, prefs.AudioQuality, prefs.Language)
	for _, l := range listeners {
		l(prefs)
	}
}

// Watch reloads the preferences whenever the file changes until ctx is
// done. The directory is watched so editors that replace the file are seen.
func (s *Settings) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	target := filepath.Clean(s.path)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("%s Watcher error: %v", logcolors.LogSettings, err)
			}
		}
	}()

	log.Infof("%s Watching %s", logcolors.LogSettings, s.path)
	return nil
}

// Close stops the watcher
func (s *Settings) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	s.wg.Wait()
	return err
}

package main

import (
	"context"
	"music-player-go/circuitbreaker"
	"music-player-go/device"
	"music-player-go/logcolors"
	"music-player-go/lyrics"
	"music-player-go/middleware"
	"music-player-go/player"
	"music-player-go/services/catalog"
	"music-player-go/settings"
	"music-player-go/store"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// setupLogging applies LOG_FORMAT and LOG_LEVEL
func setupLogging() {
	if strings.EqualFold(conf.Server.LogFormat, "text") {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(conf.Server.LogLevel)
	if err != nil {
		log.Warnf("%s Unknown LOG_LEVEL %q, using info", logcolors.LogConfig, conf.Server.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// openStore opens the state database and applies persisted stats
func openStore() (*store.Store, error) {
	st, err := store.Open(conf.Storage.StateDBPath, conf.FeatureFlags.StateCompression)
	if err != nil {
		return nil, err
	}
	if err := st.LoadStats(); err != nil {
		log.Warnf("%s Failed to load persisted stats: %v", logcolors.LogStats, err)
	}
	return st, nil
}

func newCatalogClient() *catalog.Client {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:      "Catalog",
		Threshold: conf.Catalog.CircuitBreakerThreshold,
		Cooldown:  time.Duration(conf.Catalog.CircuitBreakerCooldownSecs) * time.Second,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			if to == circuitbreaker.StateOpen {
				log.Warnf("%s %s -> %s, catalog requests paused", logcolors.CircuitBreakerPrefix(name), from, to)
				return
			}
			log.Infof("%s %s -> %s", logcolors.CircuitBreakerPrefix(name), from, to)
		},
	})

	log.Infof("%s Using catalog at %s", logcolors.LogCatalog, conf.Catalog.BaseURL)
	return catalog.NewClient(catalog.Options{
		BaseURL:          conf.Catalog.BaseURL,
		Cookie:           conf.Catalog.Cookie,
		MediaProxyPrefix: conf.Catalog.MediaProxyPrefix,
		Timeout:          time.Duration(conf.Catalog.TimeoutInSeconds) * time.Second,
		RatePerSecond:    float64(conf.Catalog.RateLimitPerSecond),
		Burst:            conf.Catalog.RateLimitBurstLimit,
		Breaker:          breaker,
	})
}

// loadSettings reads the preferences file and, when enabled, keeps
// watching it for edits
func loadSettings(ctx context.Context) (*settings.Settings, error) {
	prefs, err := settings.Load(conf.Storage.PreferencesPath, settings.Defaults(conf.Player.DefaultAudioQuality))
	if err != nil {
		return nil, err
	}

	prefs.OnChange(func(p settings.Preferences) {
		log.Infof("%s Quality %s applies from the next resolved track", logcolors.LogSettings, p.AudioQuality)
	})

	if conf.FeatureFlags.WatchPreferences {
		if err := prefs.Watch(ctx); err != nil {
			log.Warnf("%s Could not watch %s: %v", logcolors.LogSettings, conf.Storage.PreferencesPath, err)
		}
	}
	return prefs, nil
}

// newLyricsSyncer puts the persistent lyrics cache in front of the catalog
// when the feature flag is on. The returned cache is nil otherwise.
func newLyricsSyncer(st *store.Store, client *catalog.Client, prefs lyrics.Preferences) (*lyrics.Syncer, *store.LyricsCache) {
	var fetcher lyrics.Fetcher = client
	var cache *store.LyricsCache

	if conf.FeatureFlags.LyricsCache {
		cache = store.NewLyricsCache(st, time.Duration(conf.Storage.LyricsCacheTTLInHours)*time.Hour)
		fetcher = store.NewCachedFetcher(client, cache)
	}

	return lyrics.NewSyncer(lyrics.SyncerConfig{
		Fetcher:     fetcher,
		Preferences: prefs,
		Epsilon:     conf.Player.LyricEpsilonInSeconds,
	}), cache
}

func newDevice() (player.Device, error) {
	return device.New(conf.Player.Device, device.Options{
		MaxBytes:   conf.Player.MaxTrackBytes,
		VolumeRamp: time.Duration(conf.Player.VolumeRampMillis) * time.Millisecond,
	})
}

// followLyrics keeps the lyric set on the current track and clears it when
// nothing is current
func followLyrics(ctx context.Context, syncer *lyrics.Syncer) func(*player.Track) {
	return func(t *player.Track) {
		if t == nil {
			syncer.Follow(ctx, "")
			return
		}
		syncer.Follow(ctx, t.ID.String())
	}
}

// newPlayer builds the player and restores the last session. Lyrics follow
// the current track and are re-requested whenever a track starts.
func newPlayer(ctx context.Context, dev player.Device, client *catalog.Client, prefs player.Preferences, st *store.Store, syncer *lyrics.Syncer) (*player.Player, error) {
	p, err := player.New(player.Config{
		Device:       dev,
		Resolver:     client,
		Preferences:  prefs,
		HistoryLimit: conf.Player.HistoryLimit,
		RetryWindow:  time.Duration(conf.Player.RetryWindowInSeconds) * time.Second,
		OnTrackStarted: func(t player.Track) {
			syncer.Follow(ctx, t.ID.String())
		},
		OnCurrentChanged: followLyrics(ctx, syncer),
	})
	if err != nil {
		return nil, err
	}

	snap, ok, err := st.LoadSession()
	switch {
	case err != nil:
		log.Warnf("%s Failed to load last session: %v", logcolors.LogStore, err)
	case ok:
		p.Restore(snap)
		log.Infof("%s Restored session with %d queued tracks", logcolors.LogStore, len(snap.Playlist))
	}
	return p, nil
}

// startLimiterPruner forgets idle client IPs every interval until ctx ends
func startLimiterPruner(ctx context.Context, limiter *middleware.IPRateLimiter, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Prune(interval); n > 0 {
					log.Debugf("%s Pruned %d idle clients", logcolors.LogRateLimit, n)
				}
			}
		}
	}()
}

package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Server struct {
		Port                string `envconfig:"PORT" default:"8080"`
		LogLevel            string `envconfig:"LOG_LEVEL" default:"info"`
		LogFormat           string `envconfig:"LOG_FORMAT" default:"json"`
		RateLimitPerSecond  int    `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
		RateLimitBurstLimit int    `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"40"`
		// Read-only endpoints (state, lyrics, queue) get a second, looser tier
		ReadRateLimitPerSecond  int      `envconfig:"READ_RATE_LIMIT_PER_SECOND" default:"50"`
		ReadRateLimitBurstLimit int      `envconfig:"READ_RATE_LIMIT_BURST_LIMIT" default:"100"`
		AllowedOrigins          []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
		APIKey                  string   `envconfig:"API_KEY" default:""`
		APIKeyRequired          bool     `envconfig:"API_KEY_REQUIRED" default:"false"`
		ShutdownTimeoutInSecs   int      `envconfig:"SHUTDOWN_TIMEOUT_SECS" default:"10"`
	}

	Catalog struct {
		BaseURL                    string `envconfig:"CATALOG_BASE_URL" default:"http://localhost:3000"`
		MediaProxyPrefix           string `envconfig:"MEDIA_PROXY_PREFIX" default:""`
		TimeoutInSeconds           int    `envconfig:"CATALOG_TIMEOUT_SECS" default:"10"`
		RateLimitPerSecond         int    `envconfig:"CATALOG_RATE_LIMIT_PER_SECOND" default:"5"`
		RateLimitBurstLimit        int    `envconfig:"CATALOG_RATE_LIMIT_BURST_LIMIT" default:"10"`
		CircuitBreakerThreshold    int    `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`     // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int    `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"30"` // Seconds to wait before probing again
		Cookie                     string `envconfig:"CATALOG_COOKIE" default:""`
	}

	Player struct {
		Device                string  `envconfig:"DEVICE" default:"speaker"` // speaker or null
		DefaultAudioQuality   string  `envconfig:"DEFAULT_AUDIO_QUALITY" default:"exhigh"`
		RetryWindowInSeconds  int     `envconfig:"RETRY_WINDOW_SECS" default:"10"`
		HistoryLimit          int     `envconfig:"HISTORY_LIMIT" default:"100"`
		LyricEpsilonInSeconds float64 `envconfig:"LYRIC_EPSILON_SECS" default:"0.5"`
		MaxTrackBytes         int64   `envconfig:"MAX_TRACK_BYTES" default:"209715200"`
		VolumeRampMillis      int     `envconfig:"VOLUME_RAMP_MS" default:"250"`
	}

	Storage struct {
		StateDBPath             string `envconfig:"STATE_DB_PATH" default:"./data/player.db"`
		StateSaveIntervalInSecs int    `envconfig:"STATE_SAVE_INTERVAL_SECS" default:"15"`
		PreferencesPath         string `envconfig:"PREFERENCES_PATH" default:"./preferences.toml"`
		LyricsCacheTTLInHours   int    `envconfig:"LYRICS_CACHE_TTL_HOURS" default:"168"` // 0 keeps entries forever
	}

	FeatureFlags struct {
		StateCompression    bool `envconfig:"FF_STATE_COMPRESSION" default:"true"`
		PersistResolvedURLs bool `envconfig:"FF_PERSIST_RESOLVED_URLS" default:"false"`
		WatchPreferences    bool `envconfig:"FF_WATCH_PREFERENCES" default:"true"`
		LyricsCache         bool `envconfig:"FF_LYRICS_CACHE" default:"true"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}

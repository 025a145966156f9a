package main

import (
	"context"
	"errors"
	"music-player-go/config"
	"music-player-go/logcolors"
	"music-player-go/lyrics"
	"music-player-go/middleware"
	"music-player-go/player"
	"music-player-go/services/catalog"
	"music-player-go/settings"
	"music-player-go/store"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var conf = config.Get()

var (
	musicPlayer   *player.Player
	lyricSyncer   *lyrics.Syncer
	userSettings  *settings.Settings
	catalogClient *catalog.Client
	stateStore    *store.Store
	lyricsCache   *store.LyricsCache
)

func init() {
	setupLogging()
}

// buildHandler chains logging, CORS, API key auth and rate limiting
// around the router
func buildHandler(router *mux.Router, limiter *middleware.IPRateLimiter) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   conf.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Track-ID", "X-Lyrics-Status", "X-RateLimit-Type", "X-RateLimit-Remaining"},
		AllowCredentials: true,
	})

	publicPaths := []string{"/", "/health"}
	authed := middleware.APIKeyMiddleware(conf.Server.APIKey, conf.Server.APIKeyRequired, publicPaths)(router)
	limited := limiter.Middleware(conf.Server.APIKey)(authed)
	return middleware.LoggingMiddleware(c.Handler(limited))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	stateStore, err = openStore()
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogStoreInit, err)
	}

	userSettings, err = loadSettings(ctx)
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogSettings, err)
	}

	catalogClient = newCatalogClient()
	lyricSyncer, lyricsCache = newLyricsSyncer(stateStore, catalogClient, userSettings)

	dev, err := newDevice()
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogDevice, err)
	}

	musicPlayer, err = newPlayer(ctx, dev, catalogClient, userSettings, stateStore, lyricSyncer)
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogPlayer, err)
	}
	musicPlayer.Start(ctx)

	stateStore.StartAutoSave(time.Duration(conf.Storage.StateSaveIntervalInSecs)*time.Second, func() player.Snapshot {
		return musicPlayer.Snapshot(conf.FeatureFlags.PersistResolvedURLs)
	})

	router := mux.NewRouter()
	setupRoutes(router)

	limiter := middleware.NewIPRateLimiter(
		rate.Limit(conf.Server.RateLimitPerSecond), conf.Server.RateLimitBurstLimit,
		rate.Limit(conf.Server.ReadRateLimitPerSecond), conf.Server.ReadRateLimitBurstLimit,
	)
	startLimiterPruner(ctx, limiter, 10*time.Minute)

	server := &http.Server{
		Addr:              ":" + conf.Server.Port,
		Handler:           buildHandler(router, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("%s Control API listening on port %s", logcolors.LogServer, conf.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s %v", logcolors.LogServer, err)
		}
	}()

	<-ctx.Done()
	log.Infof("%s Shutting down", logcolors.LogServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.Server.ShutdownTimeoutInSecs)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}

	if err := musicPlayer.Close(); err != nil {
		log.Warnf("%s Failed to close device: %v", logcolors.LogDevice, err)
	}
	userSettings.Close()
	if err := stateStore.Close(); err != nil {
		log.Warnf("%s Failed to close store: %v", logcolors.LogStore, err)
	}
}

package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"epicshelf/internal/app"
	"epicshelf/internal/config"
	"epicshelf/internal/ratelimit"
	"epicshelf/internal/server"
	"epicshelf/internal/util"
	"epicshelf/pkg/auth"
	"epicshelf/pkg/dict"
	"epicshelf/pkg/settings"
	"epicshelf/pkg/storage"
	"epicshelf/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}
	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}
	prefs, err := settings.NewFileStore(cfg.SettingsDir)
	if err != nil {
		log.Fatalf("failed to init settings store: %v", err)
	}

	// Redis backs the dictionary cache, token revocation and login rate
	// limiting. All three degrade when it is absent.
	var (
		dictCache    dict.Cache
		revoker      auth.TokenRevoker
		loginLimiter *ratelimit.FixedWindowLimiter
	)
	if cfg.RedisAddr != "" {
		dictCache = dict.NewRedisCache(cfg.RedisAddr, "")
		revoker = auth.NewRedisTokenRevoker(cfg.RedisAddr, "")
		limiterClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		loginLimiter, err = ratelimit.NewFixedWindowLimiter(limiterClient, "epicshelf:ratelimit:login", 10, time.Minute)
		if err != nil {
			log.Fatalf("failed to init login limiter: %v", err)
		}
	} else {
		slog.Warn("redis not configured, running without dictionary cache, token revocation and login rate limiting")
	}

	sessions, err := auth.NewSessionStore(cfg.SessionSecret, cfg.SessionTTL(), revoker, auth.SessionOptions{})
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:          dataStore,
		Objects:        objects,
		Settings:       prefs,
		Dictionary:     dict.New(cfg.DictionaryURL, dictCache),
		MaxUploadBytes: cfg.MaxUploadBytes,
		SaveInterval:   cfg.SaveInterval(),
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Sessions:       sessions,
		LoginLimiter:   loginLimiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("epicshelf server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// Package app is the core application service: library management, reader
// sessions, bookmarks, dictionary lookups and per-device settings wired
// over the persistence and storage layers.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"epicshelf/pkg/auth"
	"epicshelf/pkg/dict"
	"epicshelf/pkg/domain"
	"epicshelf/pkg/reader"
	"epicshelf/pkg/settings"
	"epicshelf/pkg/storage"
	"epicshelf/pkg/store"
)

// DefaultMaxUploadBytes is the upload size ceiling (50 MB).
const DefaultMaxUploadBytes = 50 * 1024 * 1024

// DefaultSaveInterval is how often an open reader session persists its
// position.
const DefaultSaveInterval = 5 * time.Second

// Config holds runtime configuration for the core application.
type Config struct {
	Store      store.Store
	Objects    storage.ObjectStore
	Settings   settings.Store
	Dictionary *dict.Client

	MaxUploadBytes int64
	SaveInterval   time.Duration
	Reader         reader.Config
}

// App is the core application service. All exported methods are safe for
// concurrent use.
type App struct {
	store      store.Store
	objects    storage.ObjectStore
	settings   settings.Store
	dictionary *dict.Client

	maxUploadBytes int64
	saveInterval   time.Duration
	readerCfg      reader.Config

	sessions *sessionRegistry
	library  *progressCache
}

// New constructs the application. Store, Objects and Settings are required.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings store required")
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	interval := cfg.SaveInterval
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &App{
		store:          cfg.Store,
		objects:        cfg.Objects,
		settings:       cfg.Settings,
		dictionary:     cfg.Dictionary,
		maxUploadBytes: maxBytes,
		saveInterval:   interval,
		readerCfg:      cfg.Reader,
		sessions:       newSessionRegistry(),
		library:        newProgressCache(),
	}, nil
}

// SignUp registers a new account and returns the created user.
func (a *App) SignUp(email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, ValidationError("valid email required")
	}
	if len(password) < 8 {
		return domain.User{}, ValidationError("password must be at least 8 characters")
	}
	taken, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Status:       domain.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and returns the user. Unknown email and wrong
// password are indistinguishable to the caller.
func (a *App) Login(email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || user.Status != domain.UserActive {
		return domain.User{}, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser loads a user by id.
func (a *App) GetUser(id string) (domain.User, bool, error) {
	return a.store.GetUserByID(id)
}

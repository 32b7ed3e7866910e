// Package server exposes the HTTP API: auth, library, reader sessions,
// bookmarks, dictionary and settings.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"epicshelf/internal/app"
	"epicshelf/internal/ratelimit"
	"epicshelf/internal/util"
	"epicshelf/pkg/auth"
	"epicshelf/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Sessions       *auth.SessionStore
	LoginLimiter   *ratelimit.FixedWindowLimiter
	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the reading service.
type Server struct {
	app            *app.App
	sessions       *auth.SessionStore
	loginLimiter   *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = app.DefaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		sessions:       cfg.Sessions,
		loginLimiter:   cfg.LoginLimiter,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.Handle("/auth/logout", s.withUser(s.handleLogout))
	s.mux.Handle("/auth/me", s.withUser(s.handleMe))

	// library
	s.mux.Handle("/books", s.withUser(s.handleBooks))
	s.mux.Handle("/books/", s.withUser(s.handleBookByID))
	s.mux.Handle("/bookmarks", s.withUser(s.handleAllBookmarks))
	s.mux.Handle("/bookmarks/", s.withUser(s.handleBookmarkByID))

	// reader
	s.mux.Handle("/reader/", s.withUser(s.handleReader))

	// lookups and preferences
	s.mux.Handle("/dictionary/", s.withUser(s.handleDictionary))
	s.mux.Handle("/settings", s.withUser(s.handleSettings))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := s.sessions.UserID(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, found, err := s.app.GetUser(userID)
		if err != nil || !found {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// deviceID keys per-device reading preferences. Absence falls back to a
// shared default profile.
func deviceID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Device-Id")); id != "" {
		return id
	}
	return "default"
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeAppError maps application errors onto HTTP statuses and the shared
// error envelope.
func writeAppError(w http.ResponseWriter, err error) {
	var vErr app.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, app.ErrBookNotFound), errors.Is(err, app.ErrBookmarkNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, app.ErrInvalidCredentials.Error())
	case errors.Is(err, app.ErrEmailTaken):
		writeError(w, http.StatusConflict, app.ErrEmailTaken.Error())
	case errors.Is(err, app.ErrNoReaderSession):
		writeError(w, http.StatusConflict, app.ErrNoReaderSession.Error())
	case errors.Is(err, app.ErrNoCurrentLocation):
		writeError(w, http.StatusConflict, app.ErrNoCurrentLocation.Error())
	case errors.Is(err, app.ErrBookLoadFailed):
		writeError(w, http.StatusUnprocessableEntity, app.ErrBookLoadFailed.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeFor(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized", message == "invalid email or password":
		return "AUTH_INVALID_TOKEN"
	case message == "email already registered":
		return "AUTH_EMAIL_TAKEN"
	case message == "forbidden":
		return "BOOK_FORBIDDEN"
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case message == "bookmark not found":
		return "BOOKMARK_NOT_FOUND"
	case message == "no open reader session":
		return "READER_NO_SESSION"
	case message == "no current location":
		return "READER_NO_LOCATION"
	case message == "failed to load book":
		return "READER_LOAD_FAILED"
	case message == "definition not found":
		return "DICT_NOT_FOUND"
	case message == "unable to fetch definition":
		return "DICT_LOOKUP_FAILED"
	case strings.Contains(message, "must be an epub"):
		return "BOOK_UNSUPPORTED_FILE_TYPE"
	case strings.Contains(message, "exceeds maximum limit"):
		return "BOOK_FILE_TOO_LARGE"
	case strings.Contains(message, "file is required"):
		return "BOOK_FILE_REQUIRED"
	case message == "invalid form data":
		return "BOOK_INVALID_UPLOAD_FORM"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case message == "too many attempts":
		return "AUTH_RATE_LIMITED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "BOOK_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

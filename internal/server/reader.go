package server

import (
	"net/http"
	"strconv"
	"strings"

	"epicshelf/pkg/domain"
)

// /reader/{bookId}/{action}
func (s *Server) handleReader(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/reader/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		notFound(w, "not found")
		return
	}
	bookID, action := parts[0], parts[1]

	switch action {
	case "open":
		s.handleOpen(w, r, user, bookID)
	case "close":
		s.handleClose(w, r, user, bookID)
	case "next", "prev":
		s.handleTurn(w, r, user, bookID, action)
	case "goto":
		s.handleGoto(w, r, user, bookID)
	case "location":
		s.handleLocation(w, r, user, bookID)
	case "content":
		s.handleContent(w, r, user, bookID)
	case "toc":
		s.handleToc(w, r, user, bookID)
	default:
		notFound(w, "not found")
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	result, err := s.app.OpenBook(r.Context(), user, bookID, deviceID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.app.CloseBook(user, bookID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, user domain.User, bookID, direction string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	loc, err := s.app.Relocate(user, bookID, direction, "", 0)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// handleGoto jumps to an absolute target: {cfi} or {percentage}.
func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		CFI        *string  `json:"cfi"`
		Percentage *float64 `json:"percentage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		loc domain.Location
		err error
	)
	switch {
	case req.CFI != nil:
		loc, err = s.app.Relocate(user, bookID, "cfi", *req.CFI, 0)
	case req.Percentage != nil:
		loc, err = s.app.Relocate(user, bookID, "percentage", "", *req.Percentage)
	default:
		writeError(w, http.StatusBadRequest, "cfi or percentage required")
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	loc, err := s.app.CurrentLocation(user, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	bookmarked, err := s.app.IsBookmarked(user, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location":   loc,
		"bookmarked": bookmarked,
	})
}

// handleContent serves a themed chapter document. Without ?chapter=n the
// current chapter is returned.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	chapter := -1
	if raw := r.URL.Query().Get("chapter"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid chapter index")
			return
		}
		chapter = n
	}
	doc, err := s.app.ChapterHTML(user, bookID, chapter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xhtml+xml; charset=utf-8")
	_, _ = w.Write(doc)
}

func (s *Server) handleToc(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	toc, err := s.app.Toc(user, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toc})
}

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"epicshelf/pkg/domain"
)

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadBook(w, r, user)
	case http.MethodGet:
		s.handleListBooks(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

// /books/{id}, /books/{id}/download, /books/{id}/cover or
// /books/{id}/bookmarks
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "download":
			s.handleDownloadBook(w, r, user, id)
		case "cover":
			s.handleCover(w, r, user, id)
		case "bookmarks":
			s.handleBookmarks(w, r, user, id)
		default:
			notFound(w, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(r.Context(), user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.maxUploadBytes > 0 {
		// Allow form overhead beyond the file size cap; the app layer
		// enforces the exact file limit.
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeUploadBodyError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeUploadBodyError(w, err)
		return
	}
	book, err := s.app.UploadBook(r.Context(), user, header.Filename, data)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// writeUploadBodyError distinguishes a tripped request-size cap from a
// malformed multipart body, so oversized files get the size-limit message
// without the file ever being buffered.
func (s *Server) writeUploadBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("File size exceeds maximum limit of %dMB", s.maxUploadBytes/(1024*1024)))
		return
	}
	writeError(w, http.StatusBadRequest, "invalid form data")
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	filter := r.URL.Query().Get("filter")
	query := r.URL.Query().Get("q")
	books, err := s.app.FilteredBooks(r.Context(), user, filter, query)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// handleDownloadBook returns a pre-signed download URL for the book file.
func (s *Server) handleDownloadBook(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url, filename, err := s.app.GetDownloadURL(r.Context(), user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":      url,
		"filename": filename,
	})
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	img, contentType, err := s.app.CoverImage(r.Context(), user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = w.Write(img)
}

// /books/{id}/bookmarks
func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	switch r.Method {
	case http.MethodGet:
		marks, err := s.app.ListBookmarks(user, bookID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": marks,
			"count": len(marks),
		})
	case http.MethodPost:
		var req struct {
			Note string `json:"note"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		mark, err := s.app.AddBookmark(user, bookID, req.Note)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, mark)
	default:
		methodNotAllowed(w)
	}
}

// /bookmarks: every bookmark of the user, across books
func (s *Server) handleAllBookmarks(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	marks, err := s.app.AllBookmarks(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": marks,
		"count": len(marks),
	})
}

// /bookmarks/{id}
func (s *Server) handleBookmarkByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/bookmarks/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodDelete:
		if err := s.app.DeleteBookmark(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case http.MethodPut:
		var req struct {
			Note string `json:"note"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		mark, err := s.app.UpdateBookmarkNote(user, id, req.Note)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mark)
	default:
		methodNotAllowed(w)
	}
}

package app

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"epicshelf/pkg/domain"
)

// AddBookmark marks the open session's current location. The rounded
// percentage is kept as a page-number hint.
func (a *App) AddBookmark(user domain.User, bookID, note string) (domain.Bookmark, error) {
	s, ok := a.sessions.get(user.ID, bookID)
	if !ok {
		return domain.Bookmark{}, ErrNoReaderSession
	}
	loc, ok := s.location()
	if !ok || loc.CFI == "" {
		return domain.Bookmark{}, ErrNoCurrentLocation
	}
	mark := domain.Bookmark{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		BookID:    bookID,
		CFI:       loc.CFI,
		Page:      int(math.Round(loc.Percentage)),
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveBookmark(mark); err != nil {
		return domain.Bookmark{}, fmt.Errorf("save bookmark: %w", err)
	}
	return mark, nil
}

// ListBookmarks returns a book's bookmarks, newest first.
func (a *App) ListBookmarks(user domain.User, bookID string) ([]domain.Bookmark, error) {
	if _, err := a.GetBook(user, bookID); err != nil {
		return nil, err
	}
	marks, err := a.store.ListBookmarks(user.ID, bookID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	sort.Slice(marks, func(i, j int) bool {
		return marks[i].CreatedAt.After(marks[j].CreatedAt)
	})
	return marks, nil
}

// AllBookmarks returns every bookmark the user has, across books, newest
// first.
func (a *App) AllBookmarks(user domain.User) ([]domain.Bookmark, error) {
	marks, err := a.store.ListBookmarksByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return marks, nil
}

// UpdateBookmarkNote replaces the note on a bookmark owned by the user.
func (a *App) UpdateBookmarkNote(user domain.User, bookmarkID, note string) (domain.Bookmark, error) {
	mark, ok, err := a.store.GetBookmark(bookmarkID)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("load bookmark: %w", err)
	}
	if !ok {
		return domain.Bookmark{}, ErrBookmarkNotFound
	}
	if mark.UserID != user.ID {
		return domain.Bookmark{}, ErrForbidden
	}
	mark.Note = note
	if err := a.store.SaveBookmark(mark); err != nil {
		return domain.Bookmark{}, fmt.Errorf("save bookmark: %w", err)
	}
	return mark, nil
}

// DeleteBookmark removes a bookmark owned by the user.
func (a *App) DeleteBookmark(user domain.User, bookmarkID string) error {
	mark, ok, err := a.store.GetBookmark(bookmarkID)
	if err != nil {
		return fmt.Errorf("load bookmark: %w", err)
	}
	if !ok {
		return ErrBookmarkNotFound
	}
	if mark.UserID != user.ID {
		return ErrForbidden
	}
	return a.store.DeleteBookmark(bookmarkID)
}

// IsBookmarked reports whether any bookmark sits at the session's current
// location identifier.
func (a *App) IsBookmarked(user domain.User, bookID string) (bool, error) {
	s, ok := a.sessions.get(user.ID, bookID)
	if !ok {
		return false, ErrNoReaderSession
	}
	loc, ok := s.location()
	if !ok {
		return false, nil
	}
	marks, err := a.store.ListBookmarks(user.ID, bookID)
	if err != nil {
		return false, fmt.Errorf("list bookmarks: %w", err)
	}
	for _, m := range marks {
		if m.CFI == loc.CFI {
			return true, nil
		}
	}
	return false, nil
}

package store

import "epicshelf/pkg/domain"

// Store defines persistence operations for users, books, reading progress
// and bookmarks.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooksByUser(userID string) ([]domain.Book, error)
	DeleteBook(id string) error
	TouchLastOpened(id string) error

	// reading progress: one row per (user, book), upsert last-write-wins
	UpsertProgress(domain.ReadingProgress) (domain.ReadingProgress, error)
	GetProgress(userID, bookID string) (domain.ReadingProgress, bool, error)
	ListProgressByUser(userID string) ([]domain.ReadingProgress, error)

	// bookmarks: SaveBookmark upserts by id so note edits reuse it
	SaveBookmark(domain.Bookmark) error
	GetBookmark(id string) (domain.Bookmark, bool, error)
	ListBookmarks(userID, bookID string) ([]domain.Bookmark, error)
	ListBookmarksByUser(userID string) ([]domain.Bookmark, error)
	DeleteBookmark(id string) error
}

package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"epicshelf/internal/util"
	"epicshelf/pkg/domain"
	"epicshelf/pkg/epub"
)

// FilterAll matches every reading status.
const FilterAll = "all"

// progressCache keeps each user's bookID to progress map in memory so the
// library view reflects a save immediately, without re-reading the store.
type progressCache struct {
	mu    sync.Mutex
	users map[string]map[string]domain.ReadingProgress
}

func newProgressCache() *progressCache {
	return &progressCache{users: make(map[string]map[string]domain.ReadingProgress)}
}

func (c *progressCache) replace(userID string, rows []domain.ReadingProgress) map[string]domain.ReadingProgress {
	m := make(map[string]domain.ReadingProgress, len(rows))
	for _, p := range rows {
		m[p.BookID] = p
	}
	c.mu.Lock()
	c.users[userID] = m
	c.mu.Unlock()
	return m
}

func (c *progressCache) put(userID string, p domain.ReadingProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.users[userID]
	if !ok {
		m = make(map[string]domain.ReadingProgress)
		c.users[userID] = m
	}
	m[p.BookID] = p
}

func (c *progressCache) drop(userID, bookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.users[userID]; ok {
		delete(m, bookID)
	}
}

func (c *progressCache) snapshot(userID string) map[string]domain.ReadingProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.users[userID]
	m := make(map[string]domain.ReadingProgress, len(src))
	for k, v := range src {
		m[k] = v
	}
	return m
}

// Library loads the user's books and progress rows in parallel and joins
// them. Books without a progress row appear as not_started.
func (a *App) Library(ctx context.Context, user domain.User) ([]domain.BookWithProgress, error) {
	var (
		books []domain.Book
		rows  []domain.ReadingProgress
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = a.store.ListBooksByUser(user.ID)
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rows, err = a.store.ListProgressByUser(user.ID)
		if err != nil {
			return fmt.Errorf("list progress: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	byBook := a.library.replace(user.ID, rows)
	return joinProgress(books, byBook), nil
}

// FilteredBooks applies a status filter and a title/author search to the
// library view. Both conditions always apply: a search never widens the
// selected status filter.
func (a *App) FilteredBooks(ctx context.Context, user domain.User, filter, query string) ([]domain.BookWithProgress, error) {
	all, err := a.Library(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BookWithProgress, 0, len(all))
	for _, b := range all {
		if matchesFilter(b.Status, filter) && matchesQuery(b.Book, query) {
			out = append(out, b)
		}
	}
	return out, nil
}

func joinProgress(books []domain.Book, byBook map[string]domain.ReadingProgress) []domain.BookWithProgress {
	out := make([]domain.BookWithProgress, 0, len(books))
	for _, b := range books {
		entry := domain.BookWithProgress{Book: b, Status: domain.StatusNotStarted}
		if p, ok := byBook[b.ID]; ok {
			prog := p
			entry.Progress = &prog
			entry.Status = p.Status
		}
		out = append(out, entry)
	}
	return out
}

func matchesFilter(status domain.ReadingStatus, filter string) bool {
	if filter == "" || filter == FilterAll {
		return true
	}
	return string(status) == filter
}

func matchesQuery(b domain.Book, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Title), q) ||
		strings.Contains(strings.ToLower(b.Author), q)
}

// UploadBook validates, parses and stores a new book. Metadata extraction
// failure is not fatal: the book is kept with the filename as title. Cover
// upload failure only loses the cover.
func (a *App) UploadBook(ctx context.Context, user domain.User, filename string, data []byte) (domain.Book, error) {
	if err := a.validateUpload(filename, int64(len(data))); err != nil {
		return domain.Book{}, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	book := domain.Book{
		ID:               id,
		UserID:           user.ID,
		Title:            titleFromName(filename),
		Author:           "Unknown Author",
		OriginalFilename: filepath.Base(filename),
		FilePath:         buildStorageKey(user.ID, filename, now),
		FileSize:         int64(len(data)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	parsed, err := epub.Open(data)
	if err != nil {
		slog.Warn("metadata extraction failed, keeping basic info", "book_id", id, "error", err)
	} else {
		meta := parsed.Metadata()
		if meta.Title != "" {
			book.Title = meta.Title
		}
		if meta.Author != "" {
			book.Author = meta.Author
		}
		book.Publisher = meta.Publisher
		book.Language = meta.Language
		book.Description = meta.Description
		book.TotalPages = parsed.PageCountEstimate()
	}

	if err := a.objects.Put(ctx, book.FilePath, bytes.NewReader(data), int64(len(data)), "application/epub+zip"); err != nil {
		return domain.Book{}, fmt.Errorf("save file: %w", err)
	}
	if parsed != nil {
		if cover, contentType, ok := parsed.Cover(); ok {
			key := coverKey(user.ID, id, contentType)
			if err := a.objects.Put(ctx, key, bytes.NewReader(cover), int64(len(cover)), contentType); err != nil {
				slog.Warn("cover upload failed", "book_id", id, "error", err)
			} else {
				book.CoverURL = "/books/" + id + "/cover"
				book.CoverPath = key
				book.CoverType = contentType
			}
		}
	}
	if err := a.store.SaveBook(book); err != nil {
		_ = a.objects.Delete(ctx, book.FilePath)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// GetBook loads a book and enforces ownership.
func (a *App) GetBook(user domain.User, id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if book.UserID != user.ID {
		return domain.Book{}, ErrForbidden
	}
	return book, nil
}

// CoverImage returns the stored cover bytes and their media type.
func (a *App) CoverImage(ctx context.Context, user domain.User, bookID string) ([]byte, string, error) {
	book, err := a.GetBook(user, bookID)
	if err != nil {
		return nil, "", err
	}
	if book.CoverPath == "" {
		return nil, "", ErrBookNotFound
	}
	data, err := a.objects.Get(ctx, book.CoverPath)
	if err != nil {
		return nil, "", fmt.Errorf("load cover: %w", err)
	}
	contentType := book.CoverType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

// GetDownloadURL returns a pre-signed URL for the original file plus the
// filename to save it as.
func (a *App) GetDownloadURL(ctx context.Context, user domain.User, bookID string) (string, string, error) {
	book, err := a.GetBook(user, bookID)
	if err != nil {
		return "", "", err
	}
	url, err := a.objects.PresignGet(ctx, book.FilePath, time.Hour)
	if err != nil {
		return "", "", fmt.Errorf("presign download: %w", err)
	}
	return url, book.OriginalFilename, nil
}

// DeleteBook removes metadata, progress, bookmarks and stored files. File
// removal is best effort: a missing object never blocks the delete.
func (a *App) DeleteBook(ctx context.Context, user domain.User, id string) error {
	book, err := a.GetBook(user, id)
	if err != nil {
		return err
	}
	a.sessions.close(user.ID, id)
	if err := a.objects.Delete(ctx, book.FilePath); err != nil {
		slog.Warn("book file delete failed", "book_id", id, "error", err)
	}
	if book.CoverPath != "" {
		if err := a.objects.Delete(ctx, book.CoverPath); err != nil {
			slog.Warn("cover delete failed", "book_id", id, "error", err)
		}
	}
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	a.library.drop(user.ID, id)
	return nil
}

func (a *App) validateUpload(filename string, size int64) error {
	if !strings.EqualFold(filepath.Ext(filename), ".epub") {
		return ValidationError("File must be an EPUB file")
	}
	if size > a.maxUploadBytes {
		return ValidationError(fmt.Sprintf("File size exceeds maximum limit of %dMB", a.maxUploadBytes/(1024*1024)))
	}
	return nil
}

func titleFromName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" {
		return "Untitled"
	}
	return title
}

// buildStorageKey yields {userID}/{cleanName}_{unixms}_{rand}.epub so
// re-uploads of the same file never collide.
func buildStorageKey(userID, filename string, now time.Time) string {
	base := filepath.Base(filename)
	name := sanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		name = "book"
	}
	return fmt.Sprintf("%s/%s_%d_%s.epub", userID, name, now.UnixMilli(), util.NewID()[:6])
}

func coverKey(userID, bookID, mediaType string) string {
	return fmt.Sprintf("%s/covers/%s%s", userID, bookID, coverExt(mediaType))
}

func coverExt(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".jpg"
	}
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

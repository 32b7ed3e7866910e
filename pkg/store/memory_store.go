package store

import (
	"sort"
	"sync"
	"time"

	"epicshelf/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and mirrors the
// GormStore semantics, including last-write-wins progress upserts.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	email     map[string]string // email -> user ID
	books     map[string]domain.Book
	progress  map[string]domain.ReadingProgress // userID|bookID
	bookmarks map[string]domain.Bookmark
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		books:     make(map[string]domain.Book),
		progress:  make(map[string]domain.ReadingProgress),
		bookmarks: make(map[string]domain.Bookmark),
	}
}

func progressKey(userID, bookID string) string { return userID + "|" + bookID }

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooksByUser orders most recently opened first, never-opened last,
// matching the Postgres NULLS LAST ordering.
func (m *MemoryStore) ListBooksByUser(userID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Book
	for _, b := range m.books {
		if b.UserID == userID {
			res = append(res, b)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i], res[j]
		switch {
		case a.LastOpened != nil && b.LastOpened != nil:
			if !a.LastOpened.Equal(*b.LastOpened) {
				return a.LastOpened.After(*b.LastOpened)
			}
		case a.LastOpened != nil:
			return true
		case b.LastOpened != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	for key, p := range m.progress {
		if p.BookID == id {
			delete(m.progress, key)
		}
	}
	for key, bm := range m.bookmarks {
		if bm.BookID == id {
			delete(m.bookmarks, key)
		}
	}
	return nil
}

func (m *MemoryStore) TouchLastOpened(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	b.LastOpened = &now
	b.UpdatedAt = now
	m.books[id] = b
	return nil
}

func (m *MemoryStore) UpsertProgress(p domain.ReadingProgress) (domain.ReadingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p.LastReadAt = now
	p.UpdatedAt = now
	m.progress[progressKey(p.UserID, p.BookID)] = p
	return p, nil
}

func (m *MemoryStore) GetProgress(userID, bookID string) (domain.ReadingProgress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[progressKey(userID, bookID)]
	return p, ok, nil
}

func (m *MemoryStore) ListProgressByUser(userID string) ([]domain.ReadingProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.ReadingProgress
	for _, p := range m.progress {
		if p.UserID == userID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (m *MemoryStore) SaveBookmark(b domain.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookmarks[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBookmark(id string) (domain.Bookmark, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookmarks[id]
	return b, ok, nil
}

func (m *MemoryStore) ListBookmarks(userID, bookID string) ([]domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Bookmark
	for _, b := range m.bookmarks {
		if b.UserID == userID && b.BookID == bookID {
			res = append(res, b)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) ListBookmarksByUser(userID string) ([]domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Bookmark
	for _, b := range m.bookmarks {
		if b.UserID == userID {
			res = append(res, b)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) DeleteBookmark(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookmarks, id)
	return nil
}

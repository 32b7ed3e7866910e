package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"epicshelf/pkg/domain"
	"epicshelf/pkg/epub"
	"epicshelf/pkg/reader"
	"epicshelf/pkg/settings"
)

// openSession is one mounted reader: the pagination session plus the
// auto-save loop that persists its position.
type openSession struct {
	userID   string
	bookID   string
	deviceID string
	session  *reader.Session

	mu      sync.Mutex
	current domain.Location
	located bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// sessionRegistry tracks at most one open session per (user, book).
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*openSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*openSession)}
}

func sessionKey(userID, bookID string) string { return userID + "|" + bookID }

func (r *sessionRegistry) get(userID, bookID string) (*openSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionKey(userID, bookID)]
	return s, ok
}

// replace installs a new session, returning the displaced one, if any,
// for the caller to tear down.
func (r *sessionRegistry) replace(s *openSession) *openSession {
	key := sessionKey(s.userID, s.bookID)
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.sessions[key]
	r.sessions[key] = s
	return old
}

func (r *sessionRegistry) remove(s *openSession) {
	key := sessionKey(s.userID, s.bookID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[key] == s {
		delete(r.sessions, key)
	}
}

// close tears down the session for (user, book) when one is open.
func (r *sessionRegistry) close(userID, bookID string) {
	r.mu.Lock()
	s := r.sessions[sessionKey(userID, bookID)]
	delete(r.sessions, sessionKey(userID, bookID))
	r.mu.Unlock()
	if s != nil {
		s.shutdown()
	}
}

// forDevice returns every open session bound to a device key.
func (r *sessionRegistry) forDevice(deviceID string) []*openSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*openSession
	for _, s := range r.sessions {
		if s.deviceID == deviceID {
			out = append(out, s)
		}
	}
	return out
}

// shutdown stops the auto-save loop and waits for it to exit. The loop
// runs its final save before signalling done, so after shutdown returns
// no further writes happen.
func (s *openSession) shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	s.session.Close()
}

func (s *openSession) location() (domain.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.located
}

// OpenResult is everything the reader view needs on mount.
type OpenResult struct {
	Book     domain.Book       `json:"book"`
	Toc      []domain.TocItem  `json:"toc"`
	Location domain.Location   `json:"location"`
	Settings settings.Settings `json:"settings"`
}

// OpenBook downloads and parses the book, builds a reader session starting
// at the saved position and begins periodic progress saves. An existing
// session for the same (user, book) is fully torn down first.
func (a *App) OpenBook(ctx context.Context, user domain.User, bookID, deviceID string) (OpenResult, error) {
	book, err := a.GetBook(user, bookID)
	if err != nil {
		return OpenResult{}, err
	}
	if err := a.store.TouchLastOpened(bookID); err != nil {
		slog.Warn("touch last opened failed", "book_id", bookID, "error", err)
	}
	// Tear down any session already open for this book so its final save
	// lands before the resume point is read.
	a.sessions.close(user.ID, bookID)
	data, err := a.objects.Get(ctx, book.FilePath)
	if err != nil {
		return OpenResult{}, fmt.Errorf("download book: %w", err)
	}
	parsed, err := epub.Open(data)
	if err != nil {
		return OpenResult{}, fmt.Errorf("%w: %v", ErrBookLoadFailed, err)
	}

	startCFI := ""
	if progress, ok, err := a.store.GetProgress(user.ID, bookID); err != nil {
		slog.Warn("load progress failed, starting from beginning", "book_id", bookID, "error", err)
	} else if ok {
		startCFI = progress.CurrentCFI
	}

	st, err := a.settings.Get(deviceID)
	if err != nil {
		slog.Warn("settings load failed, using defaults", "device_id", deviceID, "error", err)
		st = settings.Default()
	}

	sess := reader.New(parsed, startCFI, st, a.readerCfg)
	open := &openSession{
		userID:   user.ID,
		bookID:   bookID,
		deviceID: deviceID,
		session:  sess,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	// Seed the current location so a bookmark placed before the first
	// page turn still has an address.
	start := sess.CurrentLocation()
	open.current = start
	open.located = true
	sess.OnRelocated(func(loc domain.Location) {
		open.mu.Lock()
		open.current = loc
		open.located = true
		open.mu.Unlock()
	})

	if displaced := a.sessions.replace(open); displaced != nil {
		displaced.shutdown()
	}
	go a.autoSaveLoop(open)

	return OpenResult{
		Book:     book,
		Toc:      sess.Toc(),
		Location: start,
		Settings: st,
	}, nil
}

// autoSaveLoop persists the session position on a fixed interval and once
// more on shutdown. The interval ticker is stopped before the final save,
// so the final save is exactly one write.
func (a *App) autoSaveLoop(s *openSession) {
	defer close(s.done)
	ticker := time.NewTicker(a.saveInterval)
	for {
		select {
		case <-ticker.C:
			a.saveProgress(s)
		case <-s.stop:
			ticker.Stop()
			a.saveProgress(s)
			return
		}
	}
}

// saveProgress upserts the session's position. Failures are logged and
// never surface: the next tick retries.
func (a *App) saveProgress(s *openSession) {
	loc, ok := s.location()
	if !ok {
		return
	}
	saved, err := a.store.UpsertProgress(domain.ReadingProgress{
		UserID:     s.userID,
		BookID:     s.bookID,
		CurrentCFI: loc.CFI,
		Percentage: loc.Percentage,
		Status:     domain.StatusForPercentage(loc.Percentage),
	})
	if err != nil {
		slog.Error("progress save failed", "book_id", s.bookID, "error", err)
		return
	}
	a.library.put(s.userID, saved)
}

// CloseBook tears down the reader session for a book, running one final
// progress save. Closing a book that is not open is a no-op.
func (a *App) CloseBook(user domain.User, bookID string) {
	a.sessions.close(user.ID, bookID)
}

// Relocate handles a navigation action against an open session. Action is
// one of next, prev, cfi or percentage.
func (a *App) Relocate(user domain.User, bookID, action, cfi string, pct float64) (domain.Location, error) {
	s, ok := a.sessions.get(user.ID, bookID)
	if !ok {
		return domain.Location{}, ErrNoReaderSession
	}
	switch action {
	case "next":
		return s.session.Next(), nil
	case "prev":
		return s.session.Prev(), nil
	case "cfi":
		return s.session.Display(cfi)
	case "percentage":
		return s.session.GoToPercentage(pct), nil
	default:
		return domain.Location{}, ValidationError(fmt.Sprintf("unknown navigation action %q", action))
	}
}

// Toc returns the table of contents of an open session.
func (a *App) Toc(user domain.User, bookID string) ([]domain.TocItem, error) {
	s, ok := a.sessions.get(user.ID, bookID)
	if !ok {
		return nil, ErrNoReaderSession
	}
	return s.session.Toc(), nil
}

// CurrentLocation reports the position of an open session.
func (a *App) CurrentLocation(user domain.User, bookID string) (domain.Location, error) {
	s, ok := a.sessions.get(user.ID, bookID)
	if !ok {
		return domain.Location{}, ErrNoReaderSession
	}
	return s.session.CurrentLocation(), nil
}

// ChapterHTML returns a chapter document with the session's style override
// injected. A negative index means the current chapter.
func (a *App) ChapterHTML(user domain.User, bookID string, chapter int) ([]byte, error) {
	s, ok := a.sessions.get(user.ID, bookID)
	if !ok {
		return nil, ErrNoReaderSession
	}
	if chapter < 0 {
		chapter = s.session.CurrentChapter()
	}
	return s.session.ChapterHTML(chapter)
}

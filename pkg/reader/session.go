// Package reader is the pagination and location engine: it turns a parsed
// EPUB into an addressable, paginated view with percentage tracking and
// live style overrides.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"epicshelf/pkg/domain"
	"epicshelf/pkg/epub"
	"epicshelf/pkg/settings"
)

// DefaultPageRunes is the fixed page window, in runes of extracted text.
const DefaultPageRunes = 1800

// Config tunes a session. Zero values select defaults.
type Config struct {
	// Granularity is the location-index scan interval in runes.
	Granularity int
	// PageRunes is the pagination window in runes.
	PageRunes int
}

// Session is one mounted reader view over a book. All navigation methods
// are safe for concurrent use. The location index is generated on a
// background goroutine after construction; GoToPercentage degrades to a
// logged no-op until it is ready.
type Session struct {
	book      *epub.Book
	pageRunes int
	idx       *locationIndex
	cancel    context.CancelFunc

	mu          sync.Mutex
	chapter     int
	offset      int
	css         string
	onRelocated func(domain.Location)
	closed      bool
}

// New builds a session, displays the starting location (or the first page
// when startCFI is empty or unparseable) and begins generating the
// location index in the background.
func New(book *epub.Book, startCFI string, st settings.Settings, cfg Config) *Session {
	pageRunes := cfg.PageRunes
	if pageRunes <= 0 {
		pageRunes = DefaultPageRunes
	}
	s := &Session{
		book:      book,
		pageRunes: pageRunes,
		idx:       &locationIndex{},
		css:       BuildStylesheet(st),
	}
	if startCFI != "" {
		if ch, off, err := parseLocator(startCFI); err == nil && ch < book.SpineCount() {
			s.chapter = ch
			s.offset = off
		} else {
			slog.Warn("ignoring unparseable start location", "cfi", startCFI)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		if err := s.idx.generate(ctx, book, cfg.Granularity); err != nil {
			return
		}
		// Re-announce the current position now that percentage is known.
		s.mu.Lock()
		fn := s.onRelocated
		loc := s.locationLocked()
		closed := s.closed
		s.mu.Unlock()
		if fn != nil && !closed {
			fn(loc)
		}
	}()
	return s
}

// OnRelocated registers the location-change callback. It fires on every
// page turn or jump, and once more when the location index finishes
// generating.
func (s *Session) OnRelocated(fn func(domain.Location)) {
	s.mu.Lock()
	s.onRelocated = fn
	s.mu.Unlock()
}

// IndexReady reports whether the location index is available.
func (s *Session) IndexReady() bool { return s.idx.Ready() }

// CurrentLocation returns the present position. Percentage is 0 until the
// location index is ready.
func (s *Session) CurrentLocation() domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locationLocked()
}

func (s *Session) locationLocked() domain.Location {
	return domain.Location{
		CFI:        formatLocator(s.chapter, s.offset),
		Percentage: s.idx.percentageFor(s.chapter, s.offset),
		Displayed:  s.displayedLocked(),
	}
}

func (s *Session) displayedLocked() string {
	n := s.chapterRunes(s.chapter)
	total := (n + s.pageRunes - 1) / s.pageRunes
	if total < 1 {
		total = 1
	}
	page := s.offset/s.pageRunes + 1
	if page > total {
		page = total
	}
	return fmt.Sprintf("Page %d of %d", page, total)
}

// Next advances one page, crossing into the next chapter at the end of the
// current one. At the end of the book it stays put.
func (s *Session) Next() domain.Location {
	s.mu.Lock()
	n := s.chapterRunes(s.chapter)
	if s.offset+s.pageRunes < n {
		s.offset += s.pageRunes
	} else if s.chapter+1 < s.book.SpineCount() {
		s.chapter++
		s.offset = 0
	}
	loc, fn := s.locationLocked(), s.onRelocated
	s.mu.Unlock()
	if fn != nil {
		fn(loc)
	}
	return loc
}

// Prev moves one page back, entering the previous chapter's last page when
// at a chapter start. At the beginning of the book it stays put.
func (s *Session) Prev() domain.Location {
	s.mu.Lock()
	if s.offset >= s.pageRunes {
		s.offset -= s.pageRunes
	} else if s.chapter > 0 {
		s.chapter--
		n := s.chapterRunes(s.chapter)
		if n > 0 {
			s.offset = ((n - 1) / s.pageRunes) * s.pageRunes
		} else {
			s.offset = 0
		}
	} else {
		s.offset = 0
	}
	loc, fn := s.locationLocked(), s.onRelocated
	s.mu.Unlock()
	if fn != nil {
		fn(loc)
	}
	return loc
}

// Display jumps to an absolute location identifier.
func (s *Session) Display(cfi string) (domain.Location, error) {
	ch, off, err := parseLocator(cfi)
	if err != nil {
		return domain.Location{}, err
	}
	if ch >= s.book.SpineCount() {
		return domain.Location{}, fmt.Errorf("locator %q beyond end of book", cfi)
	}
	s.mu.Lock()
	s.chapter = ch
	s.offset = off
	loc, fn := s.locationLocked(), s.onRelocated
	s.mu.Unlock()
	if fn != nil {
		fn(loc)
	}
	return loc, nil
}

// GoToPercentage jumps to the location nearest the given percentage. Before
// the location index is ready this is a no-op: the current location is
// returned unchanged and a warning is logged.
func (s *Session) GoToPercentage(pct float64) domain.Location {
	if !s.idx.Ready() {
		slog.Warn("locations not yet generated, ignoring percentage jump", "percentage", pct)
		return s.CurrentLocation()
	}
	ch, off := s.idx.positionFor(pct)
	s.mu.Lock()
	s.chapter = ch
	s.offset = off
	loc, fn := s.locationLocked(), s.onRelocated
	s.mu.Unlock()
	if fn != nil {
		fn(loc)
	}
	return loc
}

// ApplyStyles rebuilds the injected style override from new settings
// without reloading the document.
func (s *Session) ApplyStyles(st settings.Settings) {
	css := BuildStylesheet(st)
	s.mu.Lock()
	s.css = css
	s.mu.Unlock()
}

// ChapterHTML returns spine item i with the current style override
// injected. Injection happens per chapter because every chapter document
// is served in isolation.
func (s *Session) ChapterHTML(i int) ([]byte, error) {
	doc, err := s.book.Chapter(i)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	css := s.css
	s.mu.Unlock()
	return injectStylesheet(doc, css), nil
}

// CurrentChapter returns the spine index of the present position.
func (s *Session) CurrentChapter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chapter
}

// Toc returns the book's table of contents as domain entries.
func (s *Session) Toc() []domain.TocItem {
	return tocItems(s.book.Toc())
}

// Close cancels index generation and detaches the relocation callback. A
// session must be closed before a replacement for the same book is built.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.onRelocated = nil
	s.mu.Unlock()
}

func (s *Session) chapterRunes(ch int) int {
	text, err := s.book.ChapterText(ch)
	if err != nil {
		return 0
	}
	return len([]rune(text))
}

func tocItems(entries []epub.TocEntry) []domain.TocItem {
	items := make([]domain.TocItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, domain.TocItem{
			Label:    e.Label,
			Href:     e.Href,
			Children: tocItems(e.Children),
		})
	}
	return items
}

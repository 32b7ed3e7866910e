package reader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"epicshelf/pkg/domain"
	"epicshelf/pkg/epub"
	"epicshelf/pkg/settings"
)

// buildBook assembles an in-memory EPUB whose chapters each carry the
// given word counts.
func buildBook(t *testing.T, wordsPerChapter ...int) *epub.Book {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}

	write("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`)

	var manifest, spine strings.Builder
	for i, words := range wordsPerChapter {
		name := fmt.Sprintf("ch%d.xhtml", i)
		fmt.Fprintf(&manifest, `<item id="ch%d" href="%s" media-type="application/xhtml+xml"/>`, i, name)
		fmt.Fprintf(&spine, `<itemref idref="ch%d"/>`, i)
		body := strings.Repeat(fmt.Sprintf("word%d ", i), words)
		write(name, `<html xmlns="http://www.w3.org/1999/xhtml"><head></head><body><p>`+body+`</p></body></html>`)
	}
	write("content.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Nav Test</dc:title></metadata>
  <manifest>`+manifest.String()+`</manifest>
  <spine>`+spine.String()+`</spine>
</package>`)

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	book, err := epub.Open(buf.Bytes())
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	return book
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.IndexReady() {
		if time.Now().After(deadline) {
			t.Fatalf("location index never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLocatorRoundtrip(t *testing.T) {
	for _, tc := range []struct {
		chapter, offset int
	}{{0, 0}, {0, 1800}, {4, 123}, {17, 0}} {
		cfi := formatLocator(tc.chapter, tc.offset)
		ch, off, err := parseLocator(cfi)
		if err != nil {
			t.Fatalf("parse %q: %v", cfi, err)
		}
		if ch != tc.chapter || off != tc.offset {
			t.Fatalf("roundtrip %q: got (%d,%d), want (%d,%d)", cfi, ch, off, tc.chapter, tc.offset)
		}
	}
}

func TestParseLocatorRejectsMalformed(t *testing.T) {
	for _, cfi := range []string{"", "epubcfi()", "epubcfi(/6/3!/0)", "epubcfi(/6/2!/-1)", "/6/2!/0", "epubcfi(/4/2!/0"} {
		if _, _, err := parseLocator(cfi); err == nil {
			t.Fatalf("expected error for %q", cfi)
		}
	}
}

func TestNextCrossesChapters(t *testing.T) {
	// Chapter 0 holds roughly 3000 runes (500 six-rune words), so two pages.
	book := buildBook(t, 500, 500)
	s := New(book, "", settings.Default(), Config{})
	defer s.Close()

	if got := s.CurrentChapter(); got != 0 {
		t.Fatalf("start chapter = %d", got)
	}
	s.Next()
	if got := s.CurrentChapter(); got != 0 {
		t.Fatalf("after one page, chapter = %d", got)
	}
	s.Next()
	if got := s.CurrentChapter(); got != 1 {
		t.Fatalf("expected chapter crossing, chapter = %d", got)
	}

	// At the very end the position stays put.
	s.Next()
	end := s.CurrentLocation()
	if again := s.Next(); again.CFI != end.CFI {
		t.Fatalf("advanced past end: %q -> %q", end.CFI, again.CFI)
	}
}

func TestPrevEntersPreviousChapterLastPage(t *testing.T) {
	book := buildBook(t, 500, 500)
	s := New(book, formatLocator(1, 0), settings.Default(), Config{})
	defer s.Close()

	s.Prev()
	if got := s.CurrentChapter(); got != 0 {
		t.Fatalf("chapter = %d, want 0", got)
	}
	loc := s.CurrentLocation()
	ch, off, err := parseLocator(loc.CFI)
	if err != nil {
		t.Fatalf("parse %q: %v", loc.CFI, err)
	}
	if ch != 0 || off != DefaultPageRunes {
		t.Fatalf("expected last page of chapter 0, got (%d,%d)", ch, off)
	}

	// At the very beginning the position stays put.
	s.Prev()
	if again := s.Prev(); again.CFI != formatLocator(0, 0) {
		t.Fatalf("moved before start: %q", again.CFI)
	}
}

func TestUnparseableStartLocationIgnored(t *testing.T) {
	book := buildBook(t, 100)
	s := New(book, "garbage", settings.Default(), Config{})
	defer s.Close()
	if loc := s.CurrentLocation(); loc.CFI != formatLocator(0, 0) {
		t.Fatalf("start location = %q", loc.CFI)
	}
}

func TestGoToPercentageBeforeIndexReadyIsNoOp(t *testing.T) {
	book := buildBook(t, 500, 500)
	// Assemble directly so the index generator never runs.
	s := &Session{book: book, pageRunes: DefaultPageRunes, idx: &locationIndex{}}
	before := s.CurrentLocation()
	after := s.GoToPercentage(80)
	if after.CFI != before.CFI {
		t.Fatalf("location changed before index ready: %q -> %q", before.CFI, after.CFI)
	}
	if s.IndexReady() {
		t.Fatalf("index unexpectedly ready")
	}
}

func TestGoToPercentageAfterReady(t *testing.T) {
	book := buildBook(t, 500, 500, 500)
	s := New(book, "", settings.Default(), Config{Granularity: 256})
	defer s.Close()
	waitReady(t, s)

	loc := s.GoToPercentage(100)
	ch, _, err := parseLocator(loc.CFI)
	if err != nil {
		t.Fatalf("parse %q: %v", loc.CFI, err)
	}
	if ch != 2 {
		t.Fatalf("100%% landed in chapter %d", ch)
	}
	if loc.Percentage < 99.0 {
		t.Fatalf("percentage = %f", loc.Percentage)
	}

	loc = s.GoToPercentage(0)
	if loc.CFI != formatLocator(0, 0) {
		t.Fatalf("0%% landed at %q", loc.CFI)
	}
}

func TestRelocationCallbackFires(t *testing.T) {
	book := buildBook(t, 500)
	s := New(book, "", settings.Default(), Config{})
	defer s.Close()

	var mu sync.Mutex
	var got []string
	s.OnRelocated(func(loc domain.Location) {
		mu.Lock()
		got = append(got, loc.CFI)
		mu.Unlock()
	})
	s.Next()
	mu.Lock()
	fired := len(got)
	mu.Unlock()
	if fired == 0 {
		t.Fatalf("callback never fired")
	}
}

func TestDisplayedPageNumbers(t *testing.T) {
	book := buildBook(t, 500)
	s := New(book, "", settings.Default(), Config{})
	defer s.Close()

	if loc := s.CurrentLocation(); loc.Displayed != "Page 1 of 2" {
		t.Fatalf("displayed = %q", loc.Displayed)
	}
	if loc := s.Next(); loc.Displayed != "Page 2 of 2" {
		t.Fatalf("displayed = %q", loc.Displayed)
	}
}

func TestApplyStylesReflectedInChapterHTML(t *testing.T) {
	book := buildBook(t, 100)
	s := New(book, "", settings.Default(), Config{})
	defer s.Close()

	doc, err := s.ChapterHTML(0)
	if err != nil {
		t.Fatalf("chapter html: %v", err)
	}
	if !strings.Contains(string(doc), styleOverrideID) {
		t.Fatalf("style override missing from served chapter")
	}
	if !strings.Contains(string(doc), "font-size: 100%") {
		t.Fatalf("default font size missing:\n%s", doc)
	}

	st := settings.Default()
	st.FontSize = "large"
	s.ApplyStyles(st)
	doc, err = s.ChapterHTML(0)
	if err != nil {
		t.Fatalf("chapter html after restyle: %v", err)
	}
	if !strings.Contains(string(doc), "font-size: 120%") {
		t.Fatalf("restyle not applied:\n%s", doc)
	}
}

package reader

import (
	"context"
	"sort"
	"sync/atomic"

	"epicshelf/pkg/epub"
)

// DefaultLocationGranularity is the scan interval, in runes, between
// generated break-points.
const DefaultLocationGranularity = 1024

// breakPoint is one entry of the location index.
type breakPoint struct {
	chapter int
	offset  int // rune offset within the chapter text
}

// locationIndex maps locators to an approximate percentage through the
// document and back. It is generated asynchronously after a book is
// displayed; callers must check Ready before using it.
type locationIndex struct {
	ready  atomic.Bool
	points []breakPoint
	// chapterStart[i] is the index into points of chapter i's first entry.
	chapterStart []int
}

// Ready reports whether generation has completed.
func (idx *locationIndex) Ready() bool { return idx.ready.Load() }

// generate scans every chapter's text at the given granularity. It is run
// on a background goroutine; ctx cancellation abandons the scan and leaves
// the index unavailable.
func (idx *locationIndex) generate(ctx context.Context, book *epub.Book, granularity int) error {
	if granularity <= 0 {
		granularity = DefaultLocationGranularity
	}
	var points []breakPoint
	chapterStart := make([]int, book.SpineCount())
	for ch := 0; ch < book.SpineCount(); ch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		chapterStart[ch] = len(points)
		text, err := book.ChapterText(ch)
		if err != nil {
			// Unreadable chapters still occupy one break-point so that
			// navigation across them stays well-defined.
			points = append(points, breakPoint{chapter: ch})
			continue
		}
		n := len([]rune(text))
		for off := 0; off == 0 || off < n; off += granularity {
			points = append(points, breakPoint{chapter: ch, offset: off})
		}
	}
	idx.points = points
	idx.chapterStart = chapterStart
	idx.ready.Store(true)
	return nil
}

// percentageFor maps a position to [0,100]. Returns 0 when not ready.
func (idx *locationIndex) percentageFor(chapter, offset int) float64 {
	if !idx.Ready() || len(idx.points) == 0 {
		return 0
	}
	if len(idx.points) == 1 {
		return 100
	}
	pos := idx.pointAtOrBefore(chapter, offset)
	return float64(pos) / float64(len(idx.points)-1) * 100
}

// positionFor maps a percentage in [0,100] back to a break-point.
func (idx *locationIndex) positionFor(pct float64) (chapter, offset int) {
	if !idx.Ready() || len(idx.points) == 0 {
		return 0, 0
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	pos := int(pct / 100 * float64(len(idx.points)-1))
	p := idx.points[pos]
	return p.chapter, p.offset
}

func (idx *locationIndex) pointAtOrBefore(chapter, offset int) int {
	if chapter < 0 {
		return 0
	}
	if chapter >= len(idx.chapterStart) {
		return len(idx.points) - 1
	}
	start := idx.chapterStart[chapter]
	end := len(idx.points)
	if chapter+1 < len(idx.chapterStart) {
		end = idx.chapterStart[chapter+1]
	}
	// First break-point in the chapter past the offset, minus one.
	i := sort.Search(end-start, func(i int) bool {
		return idx.points[start+i].offset > offset
	})
	if i == 0 {
		return start
	}
	return start + i - 1
}

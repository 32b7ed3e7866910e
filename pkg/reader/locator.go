package reader

import (
	"fmt"
	"strings"
)

// A locator is the opaque location identifier used for resume-position and
// bookmarks: "epubcfi(/6/N!/off)" where N is the spine step (two per spine
// item, matching EPUB CFI step numbering) and off is the rune offset into
// the chapter's extracted text. Locators are stable across sessions of the
// same file; only this package interprets them.

func formatLocator(chapter, offset int) string {
	return fmt.Sprintf("epubcfi(/6/%d!/%d)", (chapter+1)*2, offset)
}

func parseLocator(cfi string) (chapter, offset int, err error) {
	body, ok := strings.CutPrefix(cfi, "epubcfi(")
	if !ok || !strings.HasSuffix(body, ")") {
		return 0, 0, fmt.Errorf("malformed locator %q", cfi)
	}
	body = strings.TrimSuffix(body, ")")
	var step int
	if _, err := fmt.Sscanf(body, "/6/%d!/%d", &step, &offset); err != nil {
		return 0, 0, fmt.Errorf("malformed locator %q", cfi)
	}
	if step < 2 || step%2 != 0 || offset < 0 {
		return 0, 0, fmt.Errorf("malformed locator %q", cfi)
	}
	return step/2 - 1, offset, nil
}

package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ChapterText returns the whitespace-normalized plain text of spine item i.
// Results are cached; the reader scans chapters repeatedly while building
// its location index.
func (b *Book) ChapterText(i int) (string, error) {
	b.mu.Lock()
	if text, ok := b.textCache[i]; ok {
		b.mu.Unlock()
		return text, nil
	}
	b.mu.Unlock()

	data, err := b.Chapter(i)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse chapter %d: %w", i, err)
	}
	text := normalizeText(extractText(doc))

	b.mu.Lock()
	b.textCache[i] = text
	b.mu.Unlock()
	return text, nil
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "head":
			return ""
		}
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(extractText(c))
		// Block elements contribute word boundaries.
		if c.Type == html.ElementNode {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

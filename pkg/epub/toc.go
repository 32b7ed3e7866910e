package epub

import (
	"bytes"
	"encoding/xml"
	"strings"

	"golang.org/x/net/html"
)

type ncxXML struct {
	NavMap struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

func (b *Book) parseNCX(href string) ([]TocEntry, error) {
	data, err := readZipFile(b.files, b.resolve(href))
	if err != nil {
		return nil, err
	}
	var ncx ncxXML
	if err := xml.Unmarshal(data, &ncx); err != nil {
		return nil, err
	}
	return ncxEntries(ncx.NavMap.NavPoints), nil
}

func ncxEntries(points []ncxNavPoint) []TocEntry {
	entries := make([]TocEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, TocEntry{
			Label:    strings.TrimSpace(p.Label.Text),
			Href:     p.Content.Src,
			Children: ncxEntries(p.Children),
		})
	}
	return entries
}

// parseNavDoc reads an EPUB3 navigation document: the first <nav> element's
// ordered list becomes the TOC tree.
func (b *Book) parseNavDoc(href string) ([]TocEntry, error) {
	data, err := readZipFile(b.files, b.resolve(href))
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	nav := findNode(doc, "nav")
	if nav == nil {
		return nil, nil
	}
	list := findNode(nav, "ol")
	if list == nil {
		return nil, nil
	}
	return navEntries(list), nil
}

func navEntries(ol *html.Node) []TocEntry {
	var entries []TocEntry
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		entry := TocEntry{}
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "a", "span":
				if entry.Label == "" {
					entry.Label = normalizeText(extractText(c))
					entry.Href = attr(c, "href")
				}
			case "ol":
				entry.Children = navEntries(c)
			}
		}
		if entry.Label != "" || len(entry.Children) > 0 {
			entries = append(entries, entry)
		}
	}
	return entries
}

func findNode(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, name); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

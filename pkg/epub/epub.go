// Package epub reads EPUB containers in memory: metadata, spine, table of
// contents and cover extraction. It is not a layout engine; pagination is
// layered on top by pkg/reader.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
)

// pageSizeHeuristic approximates printed pages per spine item for the
// library's total-page estimate.
const pageSizeHeuristic = 20

// Metadata is the descriptive information from the OPF package document.
type Metadata struct {
	Title       string
	Author      string
	Publisher   string
	Language    string
	Description string
}

// Chapter is one spine item.
type Chapter struct {
	Href      string
	MediaType string
}

// TocEntry is one table-of-contents node.
type TocEntry struct {
	Label    string
	Href     string
	Children []TocEntry
}

// Book is a parsed EPUB container.
type Book struct {
	meta    Metadata
	spine   []Chapter
	toc     []TocEntry
	files   map[string]*zip.File
	opfDir  string
	coverID string
	cover   string // manifest href of the cover image, if any

	mu        sync.Mutex
	textCache map[int]string
}

type containerXML struct {
	RootFiles struct {
		RootFile []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type packageXML struct {
	Metadata struct {
		Title       []string `xml:"title"`
		Creator     []string `xml:"creator"`
		Publisher   []string `xml:"publisher"`
		Language    []string `xml:"language"`
		Description []string `xml:"description"`
		Meta        []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// Open parses an EPUB from its binary payload. Missing title or author do
// not fail the open; callers substitute fallbacks.
func Open(data []byte) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[normalizePath(f.Name)] = f
	}

	containerData, err := readZipFile(files, "META-INF/container.xml")
	if err != nil {
		return nil, fmt.Errorf("read container.xml: %w", err)
	}
	var container containerXML
	if err := xml.Unmarshal(containerData, &container); err != nil {
		return nil, fmt.Errorf("parse container.xml: %w", err)
	}
	if len(container.RootFiles.RootFile) == 0 {
		return nil, fmt.Errorf("no rootfile in container.xml")
	}
	opfPath := normalizePath(container.RootFiles.RootFile[0].FullPath)
	opfData, err := readZipFile(files, opfPath)
	if err != nil {
		return nil, fmt.Errorf("read package document: %w", err)
	}
	var pkg packageXML
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("parse package document: %w", err)
	}

	book := &Book{
		files:     files,
		opfDir:    dirOf(opfPath),
		textCache: make(map[int]string),
	}
	book.meta = Metadata{
		Title:       first(pkg.Metadata.Title),
		Author:      first(pkg.Metadata.Creator),
		Publisher:   first(pkg.Metadata.Publisher),
		Language:    first(pkg.Metadata.Language),
		Description: first(pkg.Metadata.Description),
	}

	manifest := make(map[string]Chapter, len(pkg.Manifest.Items))
	var navHref, ncxHref string
	for _, item := range pkg.Manifest.Items {
		manifest[item.ID] = Chapter{Href: item.Href, MediaType: item.MediaType}
		if strings.Contains(item.Properties, "cover-image") {
			book.cover = item.Href
		}
		if strings.Contains(item.Properties, "nav") {
			navHref = item.Href
		}
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxHref = item.Href
		}
	}
	// EPUB2 style: <meta name="cover" content="item-id"/>.
	if book.cover == "" {
		for _, m := range pkg.Metadata.Meta {
			if m.Name == "cover" {
				if item, ok := manifest[m.Content]; ok {
					book.cover = item.Href
				}
			}
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		item, ok := manifest[ref.IDRef]
		if !ok {
			continue
		}
		if !isDocumentType(item.MediaType, item.Href) {
			continue
		}
		book.spine = append(book.spine, item)
	}
	if len(book.spine) == 0 {
		return nil, fmt.Errorf("epub has no readable spine items")
	}

	// TOC: prefer the EPUB3 nav document, fall back to NCX. A missing or
	// broken TOC is not a load failure.
	if navHref != "" {
		if toc, err := book.parseNavDoc(navHref); err == nil {
			book.toc = toc
		}
	}
	if len(book.toc) == 0 && ncxHref != "" {
		if toc, err := book.parseNCX(ncxHref); err == nil {
			book.toc = toc
		}
	}

	return book, nil
}

// Metadata returns the package metadata.
func (b *Book) Metadata() Metadata { return b.meta }

// SpineCount returns the number of readable spine items.
func (b *Book) SpineCount() int { return len(b.spine) }

// Spine returns the ordered spine items.
func (b *Book) Spine() []Chapter { return b.spine }

// Toc returns the table of contents, possibly empty.
func (b *Book) Toc() []TocEntry { return b.toc }

// PageCountEstimate is a rough printed-page estimate for display purposes.
func (b *Book) PageCountEstimate() int {
	return len(b.spine) * pageSizeHeuristic
}

// Chapter returns the raw document bytes of spine item i.
func (b *Book) Chapter(i int) ([]byte, error) {
	if i < 0 || i >= len(b.spine) {
		return nil, fmt.Errorf("chapter %d out of range", i)
	}
	return readZipFile(b.files, b.resolve(b.spine[i].Href))
}

// Cover returns the cover image bytes and media type when present.
func (b *Book) Cover() ([]byte, string, bool) {
	if b.cover == "" {
		return nil, "", false
	}
	data, err := readZipFile(b.files, b.resolve(b.cover))
	if err != nil {
		return nil, "", false
	}
	return data, mediaTypeForImage(b.cover), true
}

func (b *Book) resolve(href string) string {
	href = normalizePath(href)
	if b.opfDir == "" {
		return href
	}
	return normalizePath(path.Join(b.opfDir, href))
}

func readZipFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[normalizePath(name)]
	if !ok {
		// OCF paths are case-sensitive, but real files vary.
		for k, v := range files {
			if strings.EqualFold(k, normalizePath(name)) {
				f = v
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("file %q not in container", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func normalizePath(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "/")
}

func dirOf(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[:idx]
	}
	return ""
}

func first(values []string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func isDocumentType(mediaType, href string) bool {
	if mediaType == "application/xhtml+xml" || mediaType == "text/html" {
		return true
	}
	name := strings.ToLower(href)
	return strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

func mediaTypeForImage(href string) string {
	switch strings.ToLower(path.Ext(href)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}

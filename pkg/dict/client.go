// Package dict wraps the free dictionary HTTP API with a time-boxed local
// cache.
package dict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"epicshelf/pkg/domain"
)

// DefaultBaseURL is the public lookup endpoint.
const DefaultBaseURL = "https://api.dictionaryapi.dev/api/v2/entries/en"

const (
	maxDefinitionsPerMeaning = 3
	maxSynonymsPerMeaning    = 5
)

var (
	// ErrInvalidWord is returned for words that normalize to fewer than
	// two characters.
	ErrInvalidWord = errors.New("invalid word")
	// ErrNotFound is the API's 404: the word has no entry.
	ErrNotFound = errors.New("definition not found")
	// ErrLookupFailed covers every other upstream failure.
	ErrLookupFailed = errors.New("unable to fetch definition")
)

// Client looks up word definitions, serving cached results when fresh.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
}

// New builds a client. baseURL falls back to the public API.
func New(baseURL string, cache Cache) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
	}
}

// apiEntry mirrors the upstream response shape.
type apiEntry struct {
	Word      string `json:"word"`
	Phonetic  string `json:"phonetic"`
	Phonetics []struct {
		Text  string `json:"text"`
		Audio string `json:"audio"`
	} `json:"phonetics"`
	Meanings []struct {
		PartOfSpeech string `json:"partOfSpeech"`
		Definitions  []struct {
			Definition string `json:"definition"`
			Example    string `json:"example"`
		} `json:"definitions"`
		Synonyms []string `json:"synonyms"`
	} `json:"meanings"`
}

// Lookup resolves a word to its reduced definition. Cached entries younger
// than CacheExpiry are returned without a network call.
func (c *Client) Lookup(ctx context.Context, word string) (domain.Definition, error) {
	cleaned := cleanWord(word)
	if len(cleaned) < 2 {
		return domain.Definition{}, ErrInvalidWord
	}

	if c.cache != nil {
		if def, ok, err := c.cache.Get(ctx, cleaned); err == nil && ok {
			return def, nil
		} else if err != nil {
			slog.Warn("dictionary cache read failed", "word", cleaned, "err", err)
		}
	}

	def, err := c.fetch(ctx, cleaned)
	if err != nil {
		return domain.Definition{}, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cleaned, def); err != nil {
			slog.Warn("dictionary cache write failed", "word", cleaned, "err", err)
		}
	}
	return def, nil
}

// ClearCache drops every cached definition.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

func (c *Client) fetch(ctx context.Context, word string) (domain.Definition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(word), nil)
	if err != nil {
		return domain.Definition{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Definition{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Definition{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Definition{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var entries []apiEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return domain.Definition{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if len(entries) == 0 {
		return domain.Definition{}, ErrNotFound
	}
	return reduceEntry(entries[0]), nil
}

// reduceEntry keeps the first phonetic, the first audio URL and at most a
// few senses and synonyms per meaning.
func reduceEntry(entry apiEntry) domain.Definition {
	def := domain.Definition{
		Word:     entry.Word,
		Phonetic: entry.Phonetic,
	}
	for _, p := range entry.Phonetics {
		if def.Phonetic == "" && p.Text != "" {
			def.Phonetic = p.Text
		}
		if def.Audio == "" && p.Audio != "" {
			def.Audio = p.Audio
		}
	}
	for _, m := range entry.Meanings {
		meaning := domain.Meaning{PartOfSpeech: m.PartOfSpeech}
		for i, d := range m.Definitions {
			if i >= maxDefinitionsPerMeaning {
				break
			}
			meaning.Definitions = append(meaning.Definitions, domain.Sense{
				Definition: d.Definition,
				Example:    d.Example,
			})
		}
		if len(m.Synonyms) > maxSynonymsPerMeaning {
			meaning.Synonyms = m.Synonyms[:maxSynonymsPerMeaning]
		} else {
			meaning.Synonyms = m.Synonyms
		}
		def.Meanings = append(def.Meanings, meaning)
	}
	return def
}

// cleanWord lowercases and strips everything outside [a-z'-].
func cleanWord(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	var b strings.Builder
	for _, r := range word {
		if (r >= 'a' && r <= 'z') || r == '\'' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

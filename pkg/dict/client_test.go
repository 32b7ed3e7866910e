package dict

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const sampleResponse = `[{
  "word": "shelf",
  "phonetic": "",
  "phonetics": [
    {"text": "", "audio": ""},
    {"text": "/ʃɛlf/", "audio": "https://example.com/shelf.mp3"}
  ],
  "meanings": [{
    "partOfSpeech": "noun",
    "definitions": [
      {"definition": "def one", "example": "ex one"},
      {"definition": "def two"},
      {"definition": "def three"},
      {"definition": "def four"},
      {"definition": "def five"}
    ],
    "synonyms": ["s1", "s2", "s3", "s4", "s5", "s6", "s7"]
  }]
}]`

func testCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		now:    time.Now,
	}
}

func dictServer(t *testing.T, calls *atomic.Int64, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCleanWord(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"Hello!", "hello"},
		{"  It's  ", "it's"},
		{"well-known", "well-known"},
		{"word123", "word"},
		{"reading.", "reading"},
	} {
		if got := cleanWord(tc.in); got != tc.want {
			t.Fatalf("cleanWord(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLookupRejectsShortWords(t *testing.T) {
	c := New("http://unused.invalid", nil)
	for _, w := range []string{"", "a", "42", "!!"} {
		if _, err := c.Lookup(context.Background(), w); !errors.Is(err, ErrInvalidWord) {
			t.Fatalf("Lookup(%q) err = %v, want ErrInvalidWord", w, err)
		}
	}
}

func TestLookupReducesEntry(t *testing.T) {
	var calls atomic.Int64
	srv := dictServer(t, &calls, http.StatusOK, sampleResponse)
	c := New(srv.URL, nil)

	def, err := c.Lookup(context.Background(), "Shelf")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if def.Word != "shelf" {
		t.Fatalf("word = %q", def.Word)
	}
	if def.Phonetic != "/ʃɛlf/" {
		t.Fatalf("phonetic = %q", def.Phonetic)
	}
	if def.Audio != "https://example.com/shelf.mp3" {
		t.Fatalf("audio = %q", def.Audio)
	}
	if len(def.Meanings) != 1 {
		t.Fatalf("meanings = %d", len(def.Meanings))
	}
	if got := len(def.Meanings[0].Definitions); got != maxDefinitionsPerMeaning {
		t.Fatalf("definitions capped at %d, got %d", maxDefinitionsPerMeaning, got)
	}
	if got := len(def.Meanings[0].Synonyms); got != maxSynonymsPerMeaning {
		t.Fatalf("synonyms capped at %d, got %d", maxSynonymsPerMeaning, got)
	}
	if def.Meanings[0].Definitions[0].Example != "ex one" {
		t.Fatalf("example = %q", def.Meanings[0].Definitions[0].Example)
	}
}

func TestLookupFreshCacheSkipsNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := dictServer(t, &calls, http.StatusOK, sampleResponse)
	c := New(srv.URL, testCache(t))

	if _, err := c.Lookup(context.Background(), "shelf"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("first lookup made %d upstream calls", calls.Load())
	}
	if _, err := c.Lookup(context.Background(), "shelf"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("cached lookup hit the network (%d calls)", calls.Load())
	}
}

func TestLookupExpiredEntryRefetched(t *testing.T) {
	var calls atomic.Int64
	srv := dictServer(t, &calls, http.StatusOK, sampleResponse)
	cache := testCache(t)
	c := New(srv.URL, cache)

	if _, err := c.Lookup(context.Background(), "shelf"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}

	// Age the entry past expiry from the cache's point of view.
	cache.now = func() time.Time { return time.Now().Add(CacheExpiry + time.Minute) }
	if _, err := c.Lookup(context.Background(), "shelf"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expired entry should refetch, got %d upstream calls", calls.Load())
	}

	// The refetch overwrote the entry with a fresh timestamp.
	if _, err := c.Lookup(context.Background(), "shelf"); err != nil {
		t.Fatalf("third lookup: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("rewritten entry should be served from cache, got %d calls", calls.Load())
	}
}

func TestLookupNotFound(t *testing.T) {
	var calls atomic.Int64
	srv := dictServer(t, &calls, http.StatusNotFound, `{"title":"No Definitions Found"}`)
	c := New(srv.URL, nil)
	if _, err := c.Lookup(context.Background(), "zzxqj"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupUpstreamFailure(t *testing.T) {
	var calls atomic.Int64
	srv := dictServer(t, &calls, http.StatusInternalServerError, "boom")
	c := New(srv.URL, nil)
	if _, err := c.Lookup(context.Background(), "shelf"); !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("err = %v, want ErrLookupFailed", err)
	}
}

func TestClearCache(t *testing.T) {
	var calls atomic.Int64
	srv := dictServer(t, &calls, http.StatusOK, sampleResponse)
	c := New(srv.URL, testCache(t))

	if _, err := c.Lookup(context.Background(), "shelf"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if err := c.ClearCache(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := c.Lookup(context.Background(), "shelf"); err != nil {
		t.Fatalf("lookup after clear: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("cleared cache should refetch, got %d calls", calls.Load())
	}
}

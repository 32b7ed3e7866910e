package store

import (
	"testing"
	"time"

	"epicshelf/pkg/domain"
)

func TestMemoryStoreUsers(t *testing.T) {
	m := NewMemoryStore()
	u := domain.User{ID: "u1", Email: "reader@example.com", Status: domain.UserActive}
	if err := m.SaveUser(u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	got, ok, err := m.GetUserByEmail("reader@example.com")
	if err != nil || !ok {
		t.Fatalf("get by email: ok=%v err=%v", ok, err)
	}
	if got.ID != "u1" {
		t.Fatalf("user id = %q", got.ID)
	}
	if taken, _ := m.HasUserEmail("reader@example.com"); !taken {
		t.Fatalf("email should be taken")
	}
	if taken, _ := m.HasUserEmail("other@example.com"); taken {
		t.Fatalf("unknown email reported taken")
	}
}

func TestUpsertProgressLastWriteWins(t *testing.T) {
	m := NewMemoryStore()
	first, err := m.UpsertProgress(domain.ReadingProgress{
		UserID: "u1", BookID: "b1", CurrentCFI: "epubcfi(/6/2!/0)",
		Percentage: 10, Status: domain.StatusReading,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.LastReadAt.IsZero() {
		t.Fatalf("upsert did not stamp LastReadAt")
	}
	if _, err := m.UpsertProgress(domain.ReadingProgress{
		UserID: "u1", BookID: "b1", CurrentCFI: "epubcfi(/6/4!/100)",
		Percentage: 42.5, Status: domain.StatusReading,
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, ok, err := m.GetProgress("u1", "b1")
	if err != nil || !ok {
		t.Fatalf("get progress: ok=%v err=%v", ok, err)
	}
	if got.Percentage != 42.5 || got.CurrentCFI != "epubcfi(/6/4!/100)" {
		t.Fatalf("stale progress returned: %+v", got)
	}
	rows, err := m.ListProgressByUser("u1")
	if err != nil {
		t.Fatalf("list progress: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("upsert created %d rows, want 1", len(rows))
	}
}

func TestListBooksByUserOrdering(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now().UTC()
	older := base.Add(-2 * time.Hour)
	newer := base.Add(-1 * time.Hour)
	books := []domain.Book{
		{ID: "never-a", UserID: "u1", CreatedAt: base.Add(-3 * time.Hour)},
		{ID: "opened-old", UserID: "u1", LastOpened: &older, CreatedAt: base},
		{ID: "opened-new", UserID: "u1", LastOpened: &newer, CreatedAt: base.Add(-4 * time.Hour)},
		{ID: "never-b", UserID: "u1", CreatedAt: base.Add(-1 * time.Hour)},
		{ID: "foreign", UserID: "u2", CreatedAt: base},
	}
	for _, b := range books {
		if err := m.SaveBook(b); err != nil {
			t.Fatalf("save book: %v", err)
		}
	}
	got, err := m.ListBooksByUser("u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"opened-new", "opened-old", "never-b", "never-a"}
	if len(got) != len(want) {
		t.Fatalf("got %d books, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestTouchLastOpenedPromotesBook(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now().UTC().Add(-time.Hour)
	if err := m.SaveBook(domain.Book{ID: "b1", UserID: "u1", LastOpened: &base}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.SaveBook(domain.Book{ID: "b2", UserID: "u1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.TouchLastOpened("b2"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := m.ListBooksByUser("u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].ID != "b2" {
		t.Fatalf("touched book not first: %q", got[0].ID)
	}
}

func TestDeleteBookCascades(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SaveBook(domain.Book{ID: "b1", UserID: "u1"}); err != nil {
		t.Fatalf("save book: %v", err)
	}
	if _, err := m.UpsertProgress(domain.ReadingProgress{UserID: "u1", BookID: "b1", Percentage: 50}); err != nil {
		t.Fatalf("upsert progress: %v", err)
	}
	if err := m.SaveBookmark(domain.Bookmark{ID: "m1", UserID: "u1", BookID: "b1"}); err != nil {
		t.Fatalf("save bookmark: %v", err)
	}
	if err := m.DeleteBook("b1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.GetBook("b1"); ok {
		t.Fatalf("book survived delete")
	}
	if _, ok, _ := m.GetProgress("u1", "b1"); ok {
		t.Fatalf("progress survived delete")
	}
	if marks, _ := m.ListBookmarks("u1", "b1"); len(marks) != 0 {
		t.Fatalf("bookmarks survived delete: %d", len(marks))
	}
}

func TestListBookmarksNewestFirst(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now().UTC()
	for i, id := range []string{"m1", "m2", "m3"} {
		mark := domain.Bookmark{
			ID: id, UserID: "u1", BookID: "b1",
			CFI:       "epubcfi(/6/2!/0)",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := m.SaveBookmark(mark); err != nil {
			t.Fatalf("save bookmark: %v", err)
		}
	}
	marks, err := m.ListBookmarks("u1", "b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if marks[0].ID != "m3" || marks[2].ID != "m1" {
		t.Fatalf("ordering wrong: %v", []string{marks[0].ID, marks[1].ID, marks[2].ID})
	}
}

func TestListBookmarksByUserSpansBooks(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now().UTC()
	rows := []domain.Bookmark{
		{ID: "m1", UserID: "u1", BookID: "b1", CFI: "epubcfi(/6/2!/0)", CreatedAt: base},
		{ID: "m2", UserID: "u1", BookID: "b2", CFI: "epubcfi(/6/4!/0)", CreatedAt: base.Add(time.Minute)},
		{ID: "m3", UserID: "u2", BookID: "b1", CFI: "epubcfi(/6/2!/0)", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, mark := range rows {
		if err := m.SaveBookmark(mark); err != nil {
			t.Fatalf("save bookmark: %v", err)
		}
	}
	marks, err := m.ListBookmarksByUser("u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(marks) != 2 {
		t.Fatalf("len = %d, want 2", len(marks))
	}
	if marks[0].ID != "m2" || marks[1].ID != "m1" {
		t.Fatalf("ordering wrong: %v", []string{marks[0].ID, marks[1].ID})
	}
}

func TestSaveBookmarkOverwritesNote(t *testing.T) {
	m := NewMemoryStore()
	mark := domain.Bookmark{ID: "m1", UserID: "u1", BookID: "b1", CFI: "epubcfi(/6/2!/0)", Note: "first"}
	if err := m.SaveBookmark(mark); err != nil {
		t.Fatalf("save: %v", err)
	}
	mark.Note = "second"
	if err := m.SaveBookmark(mark); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, ok, err := m.GetBookmark("m1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Note != "second" {
		t.Fatalf("note = %q, want second", got.Note)
	}
}

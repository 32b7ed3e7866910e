package domain

import "time"

// ReadingStatus is derived from progress percentage, never stored
// independently of it.
type ReadingStatus string

const (
	StatusNotStarted ReadingStatus = "not_started"
	StatusReading    ReadingStatus = "reading"
	StatusCompleted  ReadingStatus = "completed"
)

// CompletedThreshold is the percentage at which a book counts as finished.
const CompletedThreshold = 95.0

// StatusForPercentage derives reading status from a progress percentage.
// It is recomputed on every save, so navigating backward after finishing
// a book reverts completed to reading.
func StatusForPercentage(pct float64) ReadingStatus {
	if pct >= CompletedThreshold {
		return StatusCompleted
	}
	return StatusReading
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Book struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Title            string     `json:"title"`
	Author           string     `json:"author"`
	Publisher        string     `json:"publisher,omitempty"`
	Language         string     `json:"language,omitempty"`
	Description      string     `json:"description,omitempty"`
	OriginalFilename string     `json:"originalFilename"`
	FilePath         string     `json:"-"`
	FileSize         int64      `json:"fileSize"`
	CoverURL         string     `json:"coverUrl,omitempty"`
	CoverPath        string     `json:"-"`
	CoverType        string     `json:"coverType,omitempty"`
	TotalPages       int        `json:"totalPages"`
	LastOpened       *time.Time `json:"lastOpened,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ReadingProgress is the single durable "where was I" pointer per
// (user, book). Upserted with last-write-wins semantics.
type ReadingProgress struct {
	UserID     string        `json:"userId"`
	BookID     string        `json:"bookId"`
	CurrentCFI string        `json:"currentCfi"`
	Percentage float64       `json:"progressPercentage"`
	Status     ReadingStatus `json:"readingStatus"`
	LastReadAt time.Time     `json:"lastReadAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Bookmark marks a location independent of the progress pointer. Several
// bookmarks may share the same CFI.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	CFI       string    `json:"cfi"`
	Page      int       `json:"page,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Location describes the reader position carried by relocation events.
type Location struct {
	CFI        string  `json:"cfi"`
	Percentage float64 `json:"percentage"`
	Displayed  string  `json:"displayed"`
}

// TocItem is one entry of a book's table of contents.
type TocItem struct {
	Label    string    `json:"label"`
	Href     string    `json:"href"`
	Children []TocItem `json:"children,omitempty"`
}

// BookWithProgress is the library aggregate: a book joined with its
// progress row, or implicit not_started when no row exists.
type BookWithProgress struct {
	Book     Book             `json:"book"`
	Progress *ReadingProgress `json:"progress,omitempty"`
	Status   ReadingStatus    `json:"status"`
}

// Definition is a reduced dictionary API entry.
type Definition struct {
	Word     string    `json:"word"`
	Phonetic string    `json:"phonetic,omitempty"`
	Audio    string    `json:"audio,omitempty"`
	Meanings []Meaning `json:"meanings"`
}

type Meaning struct {
	PartOfSpeech string   `json:"partOfSpeech"`
	Definitions  []Sense  `json:"definitions"`
	Synonyms     []string `json:"synonyms,omitempty"`
}

type Sense struct {
	Definition string `json:"definition"`
	Example    string `json:"example,omitempty"`
}

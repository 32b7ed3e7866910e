package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"not null;index"`
	Title            string `gorm:"not null"`
	Author           string `gorm:"not null"`
	OriginalFilename string `gorm:"not null"`
	FilePath         string `gorm:"not null"`
	FileSize         int64  `gorm:"not null"`
	CoverURL         string
	CoverPath        string
	CoverType        string
	TotalPages       int
	// Meta carries publisher/language/description without widening the
	// column set every time the parser learns a new field.
	Meta       datatypes.JSON `gorm:"type:jsonb"`
	LastOpened *time.Time     `gorm:"index"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

type ReadingProgressModel struct {
	UserID     string  `gorm:"primaryKey;uniqueIndex:idx_progress_user_book"`
	BookID     string  `gorm:"primaryKey;uniqueIndex:idx_progress_user_book"`
	CurrentCFI string  `gorm:"not null"`
	Percentage float64 `gorm:"not null"`
	Status     string  `gorm:"not null"`
	LastReadAt time.Time
	UpdatedAt  time.Time `gorm:"not null"`
}

type BookmarkModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index:idx_bookmark_user_book"`
	BookID    string `gorm:"not null;index:idx_bookmark_user_book"`
	CFI       string `gorm:"not null"`
	Page      int
	Note      string
	CreatedAt time.Time `gorm:"not null;index"`
}

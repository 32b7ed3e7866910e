package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"epicshelf/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &BookModel{}, &ReadingProgressModel{}, &BookmarkModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "status", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model, err := bookToModel(b)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "cover_url", "cover_path", "cover_type", "total_pages", "meta", "last_opened", "updated_at"}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooksByUser returns the user's books, most recently opened first,
// never-opened books last.
func (s *GormStore) ListBooksByUser(userID string) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.
		Where("user_id = ?", userID).
		Order("last_opened DESC NULLS LAST, created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// DeleteBook removes a book together with its progress row and bookmarks.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&ReadingProgressModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&BookmarkModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// TouchLastOpened stamps the book's last_opened timestamp.
func (s *GormStore) TouchLastOpened(id string) error {
	now := time.Now().UTC()
	return s.db.Model(&BookModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_opened": now,
			"updated_at":  now,
		}).Error
}

// UpsertProgress inserts or overwrites the (user, book) progress row.
// Conflicting writes are last-write-wins on the composite key.
func (s *GormStore) UpsertProgress(p domain.ReadingProgress) (domain.ReadingProgress, error) {
	now := time.Now().UTC()
	p.LastReadAt = now
	p.UpdatedAt = now
	model := progressToModel(p)
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_cfi", "percentage", "status", "last_read_at", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return domain.ReadingProgress{}, err
	}
	return p, nil
}

// GetProgress returns the progress row for (user, book).
func (s *GormStore) GetProgress(userID, bookID string) (domain.ReadingProgress, bool, error) {
	var model ReadingProgressModel
	if err := s.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ReadingProgress{}, false, nil
		}
		return domain.ReadingProgress{}, false, err
	}
	return progressFromModel(model), true, nil
}

// ListProgressByUser returns every progress row the user has.
func (s *GormStore) ListProgressByUser(userID string) ([]domain.ReadingProgress, error) {
	var models []ReadingProgressModel
	if err := s.db.Where("user_id = ?", userID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ReadingProgress, 0, len(models))
	for _, m := range models {
		res = append(res, progressFromModel(m))
	}
	return res, nil
}

// SaveBookmark inserts a bookmark row, or updates its note when the id
// already exists.
func (s *GormStore) SaveBookmark(b domain.Bookmark) error {
	model := bookmarkToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"note"}),
	}).Create(&model).Error
}

// GetBookmark returns a bookmark by id.
func (s *GormStore) GetBookmark(id string) (domain.Bookmark, bool, error) {
	var model BookmarkModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Bookmark{}, false, nil
		}
		return domain.Bookmark{}, false, err
	}
	return bookmarkFromModel(model), true, nil
}

// ListBookmarks returns bookmarks for (user, book), newest first.
func (s *GormStore) ListBookmarks(userID, bookID string) ([]domain.Bookmark, error) {
	var models []BookmarkModel
	if err := s.db.
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bookmark, 0, len(models))
	for _, m := range models {
		res = append(res, bookmarkFromModel(m))
	}
	return res, nil
}

// ListBookmarksByUser returns every bookmark the user has, across books,
// newest first.
func (s *GormStore) ListBookmarksByUser(userID string) ([]domain.Bookmark, error) {
	var models []BookmarkModel
	if err := s.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bookmark, 0, len(models))
	for _, m := range models {
		res = append(res, bookmarkFromModel(m))
	}
	return res, nil
}

// DeleteBookmark removes a bookmark by id.
func (s *GormStore) DeleteBookmark(id string) error {
	return s.db.Delete(&BookmarkModel{}, "id = ?", id).Error
}

type bookMeta struct {
	Publisher   string `json:"publisher,omitempty"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Status:       domain.UserStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) (BookModel, error) {
	meta, err := json.Marshal(bookMeta{
		Publisher:   b.Publisher,
		Language:    b.Language,
		Description: b.Description,
	})
	if err != nil {
		return BookModel{}, fmt.Errorf("encode book meta: %w", err)
	}
	return BookModel{
		ID:               b.ID,
		UserID:           b.UserID,
		Title:            b.Title,
		Author:           b.Author,
		OriginalFilename: b.OriginalFilename,
		FilePath:         b.FilePath,
		FileSize:         b.FileSize,
		CoverURL:         b.CoverURL,
		CoverPath:        b.CoverPath,
		CoverType:        b.CoverType,
		TotalPages:       b.TotalPages,
		Meta:             meta,
		LastOpened:       b.LastOpened,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}, nil
}

func bookFromModel(m BookModel) domain.Book {
	var meta bookMeta
	_ = json.Unmarshal(m.Meta, &meta)
	return domain.Book{
		ID:               m.ID,
		UserID:           m.UserID,
		Title:            m.Title,
		Author:           m.Author,
		Publisher:        meta.Publisher,
		Language:         meta.Language,
		Description:      meta.Description,
		OriginalFilename: m.OriginalFilename,
		FilePath:         m.FilePath,
		FileSize:         m.FileSize,
		CoverURL:         m.CoverURL,
		CoverPath:        m.CoverPath,
		CoverType:        m.CoverType,
		TotalPages:       m.TotalPages,
		LastOpened:       m.LastOpened,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func progressToModel(p domain.ReadingProgress) ReadingProgressModel {
	return ReadingProgressModel{
		UserID:     p.UserID,
		BookID:     p.BookID,
		CurrentCFI: p.CurrentCFI,
		Percentage: p.Percentage,
		Status:     string(p.Status),
		LastReadAt: p.LastReadAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func progressFromModel(m ReadingProgressModel) domain.ReadingProgress {
	return domain.ReadingProgress{
		UserID:     m.UserID,
		BookID:     m.BookID,
		CurrentCFI: m.CurrentCFI,
		Percentage: m.Percentage,
		Status:     domain.ReadingStatus(m.Status),
		LastReadAt: m.LastReadAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func bookmarkToModel(b domain.Bookmark) BookmarkModel {
	return BookmarkModel{
		ID:        b.ID,
		UserID:    b.UserID,
		BookID:    b.BookID,
		CFI:       b.CFI,
		Page:      b.Page,
		Note:      b.Note,
		CreatedAt: b.CreatedAt,
	}
}

func bookmarkFromModel(m BookmarkModel) domain.Bookmark {
	return domain.Bookmark{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		CFI:       m.CFI,
		Page:      m.Page,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}

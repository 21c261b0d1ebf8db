package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	app "pondserv/src/app"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore is the metadata store for Users and Images. It is the only
// writer of persisted state; everything else goes through it.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates the
// schema. Use ":memory:" in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// Referential integrity between users and images is kept by the
		// coordinator's link/unlink steps, not by database constraints.
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	// SQLite only supports a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&app.User{}, &app.Image{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser persists a new user. Emails are stored lowercased so the unique
// index is case-insensitive.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *app.User) error {
	user.Email = strings.ToLower(user.Email)
	err := s.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", app.ErrDuplicateEmail, user.Email)
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (*app.User, error) {
	var user app.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", app.ErrOwnerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (*app.User, error) {
	var user app.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", app.ErrOwnerNotFound, email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLiteStore) Users(ctx context.Context) ([]app.User, error) {
	var users []app.User
	if err := s.db.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *SQLiteStore) CreateImage(ctx context.Context, image *app.Image) error {
	return s.db.WithContext(ctx).Create(image).Error
}

// LinkImageToOwner records the Image in the owner's set. With the relational
// schema the owner column carries the membership, so the link write doubles
// as an integrity check that the row landed.
func (s *SQLiteStore) LinkImageToOwner(ctx context.Context, ownerID, imageID string) error {
	result := s.db.WithContext(ctx).Model(&app.Image{}).Where("id = ?", imageID).Update("owner_id", ownerID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", app.ErrNotFound, imageID)
	}
	return nil
}

func (s *SQLiteStore) UnlinkImageFromOwner(ctx context.Context, ownerID, imageID string) error {
	return s.db.WithContext(ctx).Model(&app.Image{}).
		Where("id = ? AND owner_id = ?", imageID, ownerID).
		Update("owner_id", "").Error
}

func (s *SQLiteStore) ImageByID(ctx context.Context, id string) (*app.Image, error) {
	var image app.Image
	err := s.db.WithContext(ctx).First(&image, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", app.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (s *SQLiteStore) ImagesByOwner(ctx context.Context, ownerID string) ([]app.Image, error) {
	var images []app.Image
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at").
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}

// UpdateAdditionalInfo is last-write-wins. An update that raced a delete
// touches zero rows and comes back as not found.
func (s *SQLiteStore) UpdateAdditionalInfo(ctx context.Context, imageID, info string) error {
	result := s.db.WithContext(ctx).Model(&app.Image{}).Where("id = ?", imageID).Update("additional_info", info)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", app.ErrNotFound, imageID)
	}
	return nil
}

func (s *SQLiteStore) DeleteImage(ctx context.Context, imageID string) error {
	return s.db.WithContext(ctx).Delete(&app.Image{}, "id = ?", imageID).Error
}

package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ukydev/telemetry-ingest/internal/models"
)

// ErrUserNotFound is returned when no user row matches a username.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the user operations the HTTP wrapper needs.
type UserRepository interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uint) error
}

// GormUserRepository implements UserRepository on a GORM connection.
type GormUserRepository struct {
	DB *gorm.DB
}

// FindUserByUsername finds a user by their username.
func (r *GormUserRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin updates the last login time for a user.
func (r *GormUserRepository) UpdateLastLogin(ctx context.Context, id uint) error {
	now := time.Now()
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_login": now, "updated_at": now}).Error
}

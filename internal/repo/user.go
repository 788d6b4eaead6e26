package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameTaken compares case-insensitively. exceptID excludes the caller's own row on profile edits.
func (r *GormRepo) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = LOWER(?) AND id <> ?", username, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRepo) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = LOWER(?) AND id <> ?", email, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRepo) UpdateUser(ctx context.Context, u *models.User, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(u).Updates(fields).Error
}

// FirstOrCreateUser inserts u unless the username exists; in that case u is overwritten with the stored row.
func (r *GormRepo) FirstOrCreateUser(ctx context.Context, u *models.User) (created bool, err error) {
	db := r.DB.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).Create(u)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	username := u.Username
	*u = models.User{}
	if err := db.Where("username = ?", username).First(u).Error; err != nil {
		return false, err
	}
	return false, nil
}

package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/bookstore/internal/hash"
	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) SaveRefreshToken(ctx context.Context, userID uint, jti, raw string, exp time.Time) error {
	token := models.RefreshToken{
		UserID:    userID,
		JTI:       jti,
		TokenHash: hash.Sha256Hex(raw),
		ExpiresAt: exp,
	}
	return r.DB.WithContext(ctx).Create(&token).Error
}

func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI string, next models.RefreshToken) error {
	return r.Transaction(ctx, func(tx *GormRepo) error {
		var old models.RefreshToken
		err := tx.DB.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("jti = ?", oldJTI).
			First(&old).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenRevoked
		}
		if err != nil {
			return err
		}
		if old.Revoked || old.ExpiresAt.Before(time.Now()) || old.UserID != next.UserID {
			return ErrTokenRevoked
		}

		if err := tx.DB.Model(&old).Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.DB.Create(&next).Error
	})
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, raw string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", hash.Sha256Hex(raw)).
		Update("revoked", true).Error
}

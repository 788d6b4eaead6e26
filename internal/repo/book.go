package repo

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
)

type BookFilter struct {
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func (f BookFilter) scope(db *gorm.DB) *gorm.DB {
	if s := strings.TrimSpace(f.Search); s != "" {
		pat := containsPattern(s)
		db = db.Where(`(LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(author) LIKE LOWER(?) ESCAPE '\')`, pat, pat)
	}
	if f.MinPrice != nil {
		db = db.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("price <= ?", *f.MaxPrice)
	}
	return db
}

func (r *GormRepo) CountBooks(ctx context.Context, f BookFilter) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&models.Book{}).Scopes(f.scope).Count(&total).Error
	return total, err
}

func (r *GormRepo) FindBooks(ctx context.Context, f BookFilter, offset, limit int) ([]models.Book, error) {
	items := make([]models.Book, 0, limit)
	err := r.DB.WithContext(ctx).Model(&models.Book{}).
		Scopes(f.scope).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *GormRepo) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := r.DB.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBooksByIDs keeps the order of ids and skips ids that no longer exist.
func (r *GormRepo) GetBooksByIDs(ctx context.Context, ids []uint) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}
	var found []models.Book
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Book, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}
	out := make([]models.Book, 0, len(found))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// EachBookBatch walks the catalog in id order, handing fn up to size books at a time.
func (r *GormRepo) EachBookBatch(ctx context.Context, size int, fn func(books []models.Book) error) error {
	var batch []models.Book
	return r.DB.WithContext(ctx).FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}

func (r *GormRepo) CreateBook(ctx context.Context, b *models.Book) error {
	return r.DB.WithContext(ctx).Create(b).Error
}

func (r *GormRepo) SaveBook(ctx context.Context, b *models.Book) error {
	return r.DB.WithContext(ctx).Save(b).Error
}

// DeleteBook refuses books that order items point at and drops the book from every cart.
func (r *GormRepo) DeleteBook(ctx context.Context, id uint) error {
	return r.Transaction(ctx, func(tx *GormRepo) error {
		var refs int64
		if err := tx.DB.Model(&models.OrderItem{}).Where("book_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrBookInUse
		}

		if err := tx.DB.Where("book_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		res := tx.DB.Delete(&models.Book{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

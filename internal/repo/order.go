package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/bookstore/internal/models"
)

// CreateOrder inserts the order row and then its items with the generated order id.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	db := r.DB.WithContext(ctx)

	items := order.Items
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := db.Omit(clause.Associations).Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

func preloadOrderItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	}).Preload("Items.Book")
}

func (r *GormRepo) CountOrders(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uint, offset, limit int) ([]models.Order, error) {
	orders := make([]models.Order, 0, limit)
	err := r.DB.WithContext(ctx).
		Scopes(preloadOrderItems).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// GetOrderForUser filters by owner so another user's order id reads as missing.
func (r *GormRepo) GetOrderForUser(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Scopes(preloadOrderItems).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

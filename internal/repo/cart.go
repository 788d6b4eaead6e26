package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/bookstore/internal/models"
)

// GetOrCreateCart inserts the user's cart if absent and returns the stored row. The unique index on
// carts.user_id makes concurrent first accesses converge on one cart.
func (r *GormRepo) GetOrCreateCart(ctx context.Context, userID uint) (*models.Cart, error) {
	db := r.DB.WithContext(ctx)

	cart := models.Cart{UserID: userID}
	if err := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&cart).Error; err != nil {
		return nil, err
	}

	var stored models.Cart
	if err := db.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// LockCart takes a row lock on the user's cart for the rest of the transaction. sqlite ignores the
// locking clause; its single writer already serializes transactions.
func (r *GormRepo) LockCart(ctx context.Context, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) CartItems(ctx context.Context, cartID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.DB.WithContext(ctx).
		Preload("Book").
		Where("cart_id = ?", cartID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// UpsertCartItem adds one copy of the book: a new row with quantity 1, or quantity+1 on the existing row.
func (r *GormRepo) UpsertCartItem(ctx context.Context, cartID, bookID uint) (*models.CartItem, error) {
	db := r.DB.WithContext(ctx)

	item := models.CartItem{CartID: cartID, BookID: bookID, Quantity: 1}
	err := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "book_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_items.quantity + 1"),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&item).Error
	if err != nil {
		return nil, err
	}

	return r.GetCartItem(ctx, cartID, bookID)
}

func (r *GormRepo) GetCartItem(ctx context.Context, cartID, bookID uint) (*models.CartItem, error) {
	var stored models.CartItem
	err := r.DB.WithContext(ctx).
		Preload("Book").
		Where("cart_id = ? AND book_id = ?", cartID, bookID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetOwnedCartItem only finds items that sit in the given cart.
func (r *GormRepo) GetOwnedCartItem(ctx context.Context, cartID, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).
		Preload("Book").
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) SetCartItemQuantity(ctx context.Context, cartID, itemID uint, quantity int) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Update("quantity", quantity)
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, cartID, itemID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteCartItems(ctx context.Context, cartID uint, itemIDs []uint) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).
		Where("cart_id = ? AND id IN ?", cartID, itemIDs).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

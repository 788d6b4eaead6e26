package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
)

// MaxItemQuantity caps how many copies of one book a cart line holds.
const MaxItemQuantity = 999

type CartService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

// GetCart returns the caller's cart with items and books loaded, creating an empty cart on first access.
func (s *CartService) GetCart(ctx context.Context, p Principal) (*models.Cart, error) {
	if err := p.require(); err != nil {
		return nil, err
	}

	cart, err := s.Repo.GetOrCreateCart(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.CartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

func (s *CartService) AddToCart(ctx context.Context, p Principal, bookID uint) (*models.CartItem, error) {
	if err := p.require(); err != nil {
		return nil, err
	}
	if bookID == 0 {
		return nil, fmt.Errorf("book_id is required: %w", ErrValidation)
	}
	if _, err := s.Repo.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
		}
		return nil, err
	}

	var item *models.CartItem
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetOrCreateCart(ctx, p.UserID)
		if err != nil {
			return err
		}
		if _, err := tx.LockCart(ctx, p.UserID); err != nil {
			return err
		}
		item, err = tx.UpsertCartItem(ctx, cart.ID, bookID)
		if err != nil {
			return err
		}
		if item.Quantity > MaxItemQuantity {
			return fmt.Errorf("at most %d copies per book: %w", MaxItemQuantity, ErrValidation)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
		}
		return nil, err
	}

	publish(ctx, s.Events, TopicCart, p.UserID, map[string]any{
		"type":     "cart.item_added",
		"user_id":  p.UserID,
		"book_id":  bookID,
		"quantity": item.Quantity,
	})
	return item, nil
}

// UpdateQuantity sets the item's quantity. A quantity of zero or less removes the item and reports removed=true.
func (s *CartService) UpdateQuantity(ctx context.Context, p Principal, itemID uint, quantity int) (item *models.CartItem, removed bool, err error) {
	if err := p.require(); err != nil {
		return nil, false, err
	}
	if quantity > MaxItemQuantity {
		return nil, false, fmt.Errorf("at most %d copies per book: %w", MaxItemQuantity, ErrValidation)
	}
	if quantity <= 0 {
		if err := s.RemoveItem(ctx, p, itemID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.LockCart(ctx, p.UserID)
		if err != nil {
			return err
		}
		n, err := tx.SetCartItemQuantity(ctx, cart.ID, itemID, quantity)
		if err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		item, err = tx.GetOwnedCartItem(ctx, cart.ID, itemID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("cart item %d: %w", itemID, ErrNotFound)
		}
		return nil, false, err
	}

	publish(ctx, s.Events, TopicCart, p.UserID, map[string]any{
		"type":     "cart.item_updated",
		"user_id":  p.UserID,
		"item_id":  itemID,
		"quantity": quantity,
	})
	return item, false, nil
}

func (s *CartService) RemoveItem(ctx context.Context, p Principal, itemID uint) error {
	if err := p.require(); err != nil {
		return err
	}

	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.LockCart(ctx, p.UserID)
		if err != nil {
			return err
		}
		n, err := tx.DeleteCartItem(ctx, cart.ID, itemID)
		if err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("cart item %d: %w", itemID, ErrNotFound)
		}
		return err
	}

	publish(ctx, s.Events, TopicCart, p.UserID, map[string]any{
		"type":    "cart.item_removed",
		"user_id": p.UserID,
		"item_id": itemID,
	})
	return nil
}

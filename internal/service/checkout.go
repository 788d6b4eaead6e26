package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
)

const (
	maxPhoneLen = 20
	maxNotesLen = 1000
)

type CheckoutService struct {
	Repo   *repo.GormRepo
	Events EventPublisher

	inflight singleflight.Group
}

type CheckoutInput struct {
	ShippingAddress string
	Phone           string
	Notes           string
}

// CheckoutPreview is what the checkout form shows before submission.
type CheckoutPreview struct {
	Cart            *models.Cart
	Total           decimal.Decimal
	ShippingAddress string
	Phone           string
}

func (in *CheckoutInput) normalize() error {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Notes = strings.TrimSpace(in.Notes)

	switch {
	case in.ShippingAddress == "":
		return fmt.Errorf("shipping address is required: %w", ErrValidation)
	case in.Phone == "":
		return fmt.Errorf("phone is required: %w", ErrValidation)
	case utf8.RuneCountInString(in.Phone) > maxPhoneLen:
		return fmt.Errorf("phone is longer than %d characters: %w", maxPhoneLen, ErrValidation)
	case utf8.RuneCountInString(in.Notes) > maxNotesLen:
		return fmt.Errorf("notes are longer than %d characters: %w", maxNotesLen, ErrValidation)
	}
	return nil
}

// Preview prefills the shipping fields from the caller's profile.
func (s *CheckoutService) Preview(ctx context.Context, p Principal) (*CheckoutPreview, error) {
	if err := p.require(); err != nil {
		return nil, err
	}

	user, err := s.Repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", p.UserID, ErrNotFound)
		}
		return nil, err
	}
	cart, err := s.Repo.GetOrCreateCart(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if cart.Items, err = s.Repo.CartItems(ctx, cart.ID); err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	return &CheckoutPreview{
		Cart:            cart,
		Total:           cart.TotalPrice(),
		ShippingAddress: user.Address,
		Phone:           user.Phone,
	}, nil
}

// Checkout converts the caller's cart into a pending order in one transaction. Concurrent submissions by
// the same user share a single attempt; a submission after a successful one finds the cart empty.
func (s *CheckoutService) Checkout(ctx context.Context, p Principal, in CheckoutInput) (*models.Order, error) {
	if err := p.require(); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	key := strconv.FormatUint(uint64(p.UserID), 10)
	v, err, shared := s.inflight.Do(key, func() (any, error) {
		return s.placeOrder(context.WithoutCancel(ctx), p, in)
	})
	if err != nil {
		return nil, err
	}
	order := v.(*models.Order)
	if shared {
		logging.FromContext(ctx).Info("checkout_shared", "user_id", p.UserID, "order_id", order.ID)
	}
	return order, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, p Principal, in CheckoutInput) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "checkout", "user_id", p.UserID)

	var order *models.Order
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.LockCart(ctx, p.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}

		items, err := tx.CartItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}
		cart.Items = items

		total := cart.TotalPrice()
		if total.GreaterThan(maxPrice) {
			return fmt.Errorf("order total %s exceeds %s: %w", total.StringFixed(2), maxPrice, ErrValidation)
		}

		o := &models.Order{
			UserID:          p.UserID,
			TotalPrice:      total,
			Status:          models.OrderStatusPending,
			ShippingAddress: in.ShippingAddress,
			Phone:           in.Phone,
			Notes:           in.Notes,
			Items:           make([]models.OrderItem, 0, len(items)),
		}
		ids := make([]uint, 0, len(items))
		for _, it := range items {
			if it.Book == nil {
				return fmt.Errorf("cart item %d has no book", it.ID)
			}
			o.Items = append(o.Items, models.OrderItem{
				BookID:   it.BookID,
				Book:     it.Book,
				Quantity: it.Quantity,
				Price:    it.Book.Price,
			})
			ids = append(ids, it.ID)
		}

		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}

		removed, err := tx.DeleteCartItems(ctx, cart.ID, ids)
		if err != nil {
			return err
		}
		if removed != int64(len(ids)) {
			return fmt.Errorf("cart changed during checkout: removed %d of %d items", removed, len(ids))
		}

		order = o
		return nil
	})
	if errors.Is(err, ErrEmptyCart) {
		return nil, ErrEmptyCart
	}
	if errors.Is(err, ErrValidation) {
		return nil, err
	}
	if err != nil {
		l.Error("checkout_failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransaction, err)
	}

	l.Info("checkout_success", "order_id", order.ID, "total", order.TotalPrice.StringFixed(2), "items", len(order.Items))
	publish(ctx, s.Events, TopicOrders, order.ID, map[string]any{
		"type":     "order.created",
		"order_id": order.ID,
		"user_id":  p.UserID,
		"total":    order.TotalPrice.StringFixed(2),
		"items":    order.TotalItems(),
	})
	return order, nil
}

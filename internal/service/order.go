package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/util"
)

type OrderService struct {
	Repo *repo.GormRepo
}

type OrderPage struct {
	Items []models.Order
	Meta  util.Meta
}

func (s *OrderService) ListOrders(ctx context.Context, p Principal, page, perPage int) (*OrderPage, error) {
	if err := p.require(); err != nil {
		return nil, err
	}

	total, err := s.Repo.CountOrders(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	_, size := util.Calculate(page, perPage)
	page = util.ClampPage(page, size, total)
	offset, limit := util.Calculate(page, size)

	orders, err := s.Repo.ListOrders(ctx, p.UserID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Items: orders, Meta: util.NewMeta(page, size, total)}, nil
}

// GetOrder never distinguishes "missing" from "someone else's".
func (s *OrderService) GetOrder(ctx context.Context, p Principal, id uint) (*models.Order, error) {
	if err := p.require(); err != nil {
		return nil, err
	}

	order, err := s.Repo.GetOrderForUser(ctx, p.UserID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return order, nil
}

package service

import (
	"fmt"

	"github.com/Skotchmaster/bookstore/internal/models"
)

// Principal is the authenticated caller. Handlers build it from verified token claims.
type Principal struct {
	UserID uint
	Role   models.Role
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

func (p Principal) require() error {
	if p.UserID == 0 {
		return fmt.Errorf("no authenticated user: %w", ErrUnauthorized)
	}
	return nil
}

func (p Principal) requireAdmin() error {
	if err := p.require(); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return fmt.Errorf("admin role required: %w", ErrForbidden)
	}
	return nil
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/testutil"
	"github.com/Skotchmaster/bookstore/internal/tokens"
)

type sentEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	m, _ := event.(map[string]any)
	p.events = append(p.events, sentEvent{Topic: topic, Key: key, Event: m})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event["type"].(string))
	}
	return out
}

type env struct {
	DB     *gorm.DB
	Repo   *repo.GormRepo
	Events *recordingPublisher

	Auth     *AuthService
	Catalog  *CatalogService
	Cart     *CartService
	Checkout *CheckoutService
	Orders   *OrderService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithDB(testutil.NewDB(t))
}

func newEnvWithDB(gdb *gorm.DB) *env {
	r := repo.New(gdb)
	pub := &recordingPublisher{}

	return &env{
		DB:     gdb,
		Repo:   r,
		Events: pub,
		Auth: &AuthService{
			Repo: r,
			Tokens: &tokens.Issuer{
				AccessSecret:  []byte("test-jwt-secret"),
				RefreshSecret: []byte("test-refresh-secret"),
				AccessTTL:     15 * time.Minute,
				RefreshTTL:    time.Hour,
			},
			Events: pub,
		},
		Catalog:  &CatalogService{Repo: r, Events: pub},
		Cart:     &CartService{Repo: r, Events: pub},
		Checkout: &CheckoutService{Repo: r, Events: pub},
		Orders:   &OrderService{Repo: r},
	}
}

func (e *env) user(t *testing.T, name string) Principal {
	t.Helper()
	u := testutil.CreateUser(t, e.DB, name, models.RoleUser)
	return Principal{UserID: u.ID, Role: u.Role}
}

func (e *env) admin(t *testing.T, name string) Principal {
	t.Helper()
	u := testutil.CreateUser(t, e.DB, name, models.RoleAdmin)
	return Principal{UserID: u.ID, Role: u.Role}
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := e.DB.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/db"
	"github.com/Skotchmaster/bookstore/internal/hash"
	"github.com/Skotchmaster/bookstore/internal/models"
)

var seq atomic.Int64

// NewDB opens a private in-memory sqlite database with foreign keys enforced and all tables migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))

	gdb, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func CreateUser(t *testing.T, gdb *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()

	pw, err := hash.HashPassword("password123")
	require.NoError(t, err)

	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: pw,
		Role:         role,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func CreateBook(t *testing.T, gdb *gorm.DB, title, price string) *models.Book {
	t.Helper()

	b := &models.Book{
		Title:  title,
		Author: "Author of " + title,
		Price:  decimal.RequireFromString(price),
	}
	require.NoError(t, gdb.Create(b).Error)
	return b
}

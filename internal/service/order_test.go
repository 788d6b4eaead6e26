package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/testutil"
)

func TestOrderService_GetOrder_OtherUserIsNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	book := testutil.CreateBook(t, e.DB, "A", "1.00")
	fillCart(t, e, alice, book)

	order, err := e.Checkout.Checkout(ctx, alice, shipping)
	require.NoError(t, err)

	_, err = e.Orders.GetOrder(ctx, bob, order.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = e.Orders.GetOrder(ctx, alice, order.ID+100)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := e.Orders.GetOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Book)
	assert.Equal(t, "A", got.Items[0].Book.Title)
}

func TestOrderService_ListOrders_NewestFirstAndOwnedOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	book := testutil.CreateBook(t, e.DB, "A", "1.00")

	var ids []uint
	for range 3 {
		fillCart(t, e, alice, book)
		o, err := e.Checkout.Checkout(ctx, alice, shipping)
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	fillCart(t, e, bob, book)
	_, err := e.Checkout.Checkout(ctx, bob, shipping)
	require.NoError(t, err)

	page, err := e.Orders.ListOrders(ctx, alice, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Meta.Total)
	assert.True(t, page.Meta.HasNext)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID)
	assert.Equal(t, ids[1], page.Items[1].ID)

	page, err = e.Orders.ListOrders(ctx, alice, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Meta.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/testutil"
)

func TestCartService_GetCart_CreatesEmptyCartOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.user(t, "alice")

	first, err := e.Cart.GetCart(ctx, p)
	require.NoError(t, err)
	second, err := e.Cart.GetCart(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.Items)
	assert.True(t, second.TotalPrice().IsZero())
	assert.EqualValues(t, 1, e.count(t, &models.Cart{}))
}

func TestCartService_AddToCart_TwiceIncrementsQuantity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.user(t, "alice")
	book := testutil.CreateBook(t, e.DB, "Go in Action", "10.00")

	item, err := e.Cart.AddToCart(ctx, p, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)

	item, err = e.Cart.AddToCart(ctx, p, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	require.NotNil(t, item.Book)
	assert.Equal(t, "20.00", item.Subtotal().StringFixed(2))

	assert.EqualValues(t, 1, e.count(t, &models.CartItem{}))
	assert.Equal(t, []string{"cart.item_added", "cart.item_added"}, e.Events.types())
}

func TestCartService_AddToCart_UnknownBook(t *testing.T) {
	e := newEnv(t)
	p := e.user(t, "alice")

	_, err := e.Cart.AddToCart(context.Background(), p, 999)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, e.count(t, &models.CartItem{}))
}

func TestCartService_Total(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.user(t, "alice")
	a := testutil.CreateBook(t, e.DB, "A", "10.00")
	b := testutil.CreateBook(t, e.DB, "B", "5.50")

	for _, id := range []uint{a.ID, a.ID, b.ID} {
		_, err := e.Cart.AddToCart(ctx, p, id)
		require.NoError(t, err)
	}

	cart, err := e.Cart.GetCart(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "25.50", cart.TotalPrice().StringFixed(2))
	assert.Equal(t, 3, cart.TotalQuantity())
}

func TestCartService_UpdateQuantity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.user(t, "alice")
	book := testutil.CreateBook(t, e.DB, "A", "3.00")

	item, err := e.Cart.AddToCart(ctx, p, book.ID)
	require.NoError(t, err)

	updated, removed, err := e.Cart.UpdateQuantity(ctx, p, item.ID, 4)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, "12.00", updated.Subtotal().StringFixed(2))
}

func TestCartService_UpdateQuantity_NonPositiveRemoves(t *testing.T) {
	for _, q := range []int{0, -5} {
		e := newEnv(t)
		ctx := context.Background()
		p := e.user(t, "alice")
		book := testutil.CreateBook(t, e.DB, "A", "3.00")

		item, err := e.Cart.AddToCart(ctx, p, book.ID)
		require.NoError(t, err)

		got, removed, err := e.Cart.UpdateQuantity(ctx, p, item.ID, q)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Nil(t, got)
		assert.Zero(t, e.count(t, &models.CartItem{}), "quantity %d", q)
	}
}

func TestCartService_OtherUsersItemIsNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	book := testutil.CreateBook(t, e.DB, "A", "3.00")

	item, err := e.Cart.AddToCart(ctx, alice, book.ID)
	require.NoError(t, err)
	_, err = e.Cart.GetCart(ctx, bob)
	require.NoError(t, err)

	_, _, err = e.Cart.UpdateQuantity(ctx, bob, item.ID, 3)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, e.Cart.RemoveItem(ctx, bob, item.ID), ErrNotFound)

	var stored models.CartItem
	require.NoError(t, e.DB.First(&stored, item.ID).Error)
	assert.Equal(t, 1, stored.Quantity)
}

func TestCartService_RemoveItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.user(t, "alice")
	book := testutil.CreateBook(t, e.DB, "A", "3.00")

	item, err := e.Cart.AddToCart(ctx, p, book.ID)
	require.NoError(t, err)

	require.NoError(t, e.Cart.RemoveItem(ctx, p, item.ID))
	require.ErrorIs(t, e.Cart.RemoveItem(ctx, p, item.ID), ErrNotFound)
}

func TestCartService_RequiresPrincipal(t *testing.T) {
	e := newEnv(t)

	_, err := e.Cart.GetCart(context.Background(), Principal{})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCartService_QuantityIsCapped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.user(t, "alice")
	book := testutil.CreateBook(t, e.DB, "A", "3.00")

	item, err := e.Cart.AddToCart(ctx, p, book.ID)
	require.NoError(t, err)

	_, _, err = e.Cart.UpdateQuantity(ctx, p, item.ID, MaxItemQuantity+1)
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = e.Cart.UpdateQuantity(ctx, p, item.ID, MaxItemQuantity)
	require.NoError(t, err)

	_, err = e.Cart.AddToCart(ctx, p, book.ID)
	require.ErrorIs(t, err, ErrValidation)

	cart, err := e.Cart.GetCart(ctx, p)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, MaxItemQuantity, cart.Items[0].Quantity)
}

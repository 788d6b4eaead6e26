package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/transport"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	p, err := principal(c)
	if err != nil {
		return err
	}
	cart, err := h.Svc.GetCart(ctx, p)
	if err != nil {
		return fail(l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCartView(cart))
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req transport.AddCartItemRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "add_to_cart_error", err)
	}

	item, err := h.Svc.AddToCart(ctx, p, req.BookID)
	if err != nil {
		return fail(l, "add_to_cart_error", err)
	}
	l.Info("add_to_cart_success", "book_id", req.BookID, "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, transport.NewCartItemView(item))
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return fail(l, "update_cart_error", err)
	}
	var req transport.UpdateCartItemRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_cart_error", err)
	}

	item, removed, err := h.Svc.UpdateQuantity(ctx, p, id, *req.Quantity)
	if err != nil {
		return fail(l, "update_cart_error", err)
	}
	if removed {
		return c.JSON(http.StatusOK, echo.Map{"id": id, "removed": true})
	}
	return c.JSON(http.StatusOK, transport.NewCartItemView(item))
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return fail(l, "remove_from_cart_error", err)
	}
	if err := h.Svc.RemoveItem(ctx, p, id); err != nil {
		return fail(l, "remove_from_cart_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

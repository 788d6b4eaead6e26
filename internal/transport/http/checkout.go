package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/transport"
)

type CheckoutHTTP struct {
	Svc *service.CheckoutService
	// CartURL is where an empty checkout is sent back to.
	CartURL string
}

func (h *CheckoutHTTP) Preview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.preview")

	p, err := principal(c)
	if err != nil {
		return err
	}
	preview, err := h.Svc.Preview(ctx, p)
	if errors.Is(err, service.ErrEmptyCart) {
		return h.backToCart(c)
	}
	if err != nil {
		return fail(l, "checkout_preview_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCheckoutPreviewView(preview))
}

func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.submit")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req transport.CheckoutRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "checkout_error", err)
	}

	order, err := h.Svc.Checkout(ctx, p, req.Input())
	if errors.Is(err, service.ErrEmptyCart) {
		l.Info("checkout_empty_cart")
		return h.backToCart(c)
	}
	if err != nil {
		return fail(l, "checkout_error", err)
	}
	return c.JSON(http.StatusCreated, transport.NewOrderView(order))
}

func (h *CheckoutHTTP) backToCart(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, h.CartURL)
}

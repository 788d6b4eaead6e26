package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/transport"
	"github.com/Skotchmaster/bookstore/internal/util"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.list")

	p, err := principal(c)
	if err != nil {
		return err
	}
	page, err := h.Svc.ListOrders(ctx, p,
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize),
	)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderList(page.Items, page.Meta))
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.get")

	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	order, err := h.Svc.GetOrder(ctx, p, id)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderView(order))
}

package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/transport"
	"github.com/Skotchmaster/bookstore/internal/util"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.list")

	q := service.BookQuery{
		Search:  c.QueryParam("search"),
		Page:    util.ParseIntDefault(c.QueryParam("page"), 1),
		PerPage: util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize),
	}
	var err error
	if q.MinPrice, err = priceParam(c, "min_price"); err != nil {
		return fail(l, "list_books_error", err)
	}
	if q.MaxPrice, err = priceParam(c, "max_price"); err != nil {
		return fail(l, "list_books_error", err)
	}

	page, err := h.Svc.ListBooks(ctx, q)
	if err != nil {
		return fail(l, "list_books_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewBookList(page.Items, page.Meta))
}

func (h *CatalogHTTP) SearchBooks(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.search")

	page, err := h.Svc.SearchBooks(ctx,
		c.QueryParam("q"),
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize),
	)
	if err != nil {
		return fail(l, "search_books_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewBookList(page.Items, page.Meta))
}

func (h *CatalogHTTP) GetBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.get")

	id, err := parseID(c)
	if err != nil {
		return fail(l, "get_book_failed", err)
	}
	book, err := h.Svc.GetBook(ctx, id)
	if err != nil {
		return fail(l, "get_book_failed", err)
	}
	return c.JSON(http.StatusOK, transport.NewBookView(book))
}

func (h *CatalogHTTP) CreateBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.create")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req transport.CreateBookRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "book_create_error", err)
	}
	in, err := req.Input()
	if err != nil {
		return fail(l, "book_create_error", err)
	}

	book, err := h.Svc.CreateBook(ctx, p, in)
	if err != nil {
		return fail(l, "book_create_error", err)
	}
	l.Info("create_book_success", "book_id", book.ID)
	return c.JSON(http.StatusCreated, transport.NewBookView(book))
}

func (h *CatalogHTTP) PatchBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.patch")

	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return fail(l, "book_patch_error", err)
	}
	var req transport.PatchBookRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "book_patch_error", err)
	}
	patch, err := req.Patch()
	if err != nil {
		return fail(l, "book_patch_error", err)
	}

	book, err := h.Svc.UpdateBook(ctx, p, id, patch)
	if err != nil {
		return fail(l, "book_patch_error", err)
	}
	l.Info("patch_book_success", "book_id", book.ID)
	return c.JSON(http.StatusOK, transport.NewBookView(book))
}

func (h *CatalogHTTP) DeleteBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.delete")

	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return fail(l, "book_delete_error", err)
	}
	if err := h.Svc.DeleteBook(ctx, p, id); err != nil {
		return fail(l, "book_delete_error", err)
	}

	l.Info("delete_book_success", "book_id", id)
	return c.NoContent(http.StatusNoContent)
}

func priceParam(c echo.Context, name string) (*decimal.Decimal, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number: %w", name, service.ErrValidation)
	}
	return &d, nil
}

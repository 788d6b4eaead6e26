package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/middleware/auth"
	"github.com/Skotchmaster/bookstore/internal/service"
)

// fail logs err under event and turns it into the HTTP error the client sees.
func fail(l *slog.Logger, event string, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		l.Warn(event, "status", he.Code, "error", err)
		return he
	}

	code, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, service.ErrValidation):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		code, msg = http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, service.ErrUnauthorized):
		code, msg = http.StatusUnauthorized, "authentication required"
	case errors.Is(err, service.ErrForbidden):
		code, msg = http.StatusForbidden, "you don't have enough rights"
	case errors.Is(err, service.ErrNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrConflict):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrTransaction):
		msg = "could not place the order, please try again"
	}

	if code >= 500 {
		l.Error(event, "status", code, "error", err)
	} else {
		l.Warn(event, "status", code, "error", err)
	}
	return echo.NewHTTPError(code, msg)
}

func principal(c echo.Context) (service.Principal, error) {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return service.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return uint(id), nil
}

package auth

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/tokens"
)

var errNoPrincipal = errors.New("no principal in request context")

func PrincipalFrom(c echo.Context) (service.Principal, error) {
	p, ok := c.Get(ctxPrincipal).(service.Principal)
	if !ok || p.UserID == 0 {
		return service.Principal{}, errNoPrincipal
	}
	return p, nil
}

func SetSessionCookies(c echo.Context, p *tokens.Pair, secure bool) {
	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, p.AccessToken, "/", p.AccessExp, secure))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, p.RefreshToken, "/", p.RefreshExp, secure))
}

func ClearSessionCookies(c echo.Context, secure bool) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/", secure))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/", secure))
}

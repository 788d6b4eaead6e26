package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin must run after RequireLogin.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := PrincipalFrom(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
		}
		if !p.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights to see this page")
		}
		return next(c)
	}
}

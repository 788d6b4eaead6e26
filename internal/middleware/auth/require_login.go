package auth

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/tokens"
)

const (
	ctxToken     = "user"
	ctxPrincipal = "principal"
)

// RequireLogin accepts an access token from "Authorization: Bearer" or the access cookie and
// stores the caller as a service.Principal.
func RequireLogin(secret []byte) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    secret,
		SigningMethod: "HS256",
		ContextKey:    ctxToken,
		TokenLookup:   "header:Authorization:Bearer ,cookie:" + tokens.AccessCookie,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(tokens.AccessClaims) },
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).Warn("auth_failed", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(setPrincipal(next))
	}
}

func setPrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get(ctxToken).(*jwt.Token)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}
		claims, ok := token.Claims.(*tokens.AccessClaims)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
		}
		id, err := claims.UserID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
		}

		c.Set(ctxPrincipal, service.Principal{UserID: id, Role: models.Role(claims.Role)})
		return next(c)
	}
}

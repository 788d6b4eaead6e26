package auth

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/tokens"
)

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
}

// AutoRefresh renews a missing or expired access cookie from the refresh cookie. It runs before
// RequireLogin and hands the new access token on through the Authorization header.
func AutoRefresh(secret []byte, r Refresher, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Header.Get(echo.HeaderAuthorization) != "" {
				return next(c)
			}
			if ac, err := c.Cookie(tokens.AccessCookie); err == nil && ac.Value != "" {
				if _, err := tokens.AccessClaimsFromToken(ac.Value, secret); err == nil {
					return next(c)
				}
			}
			rc, err := c.Cookie(tokens.RefreshCookie)
			if err != nil || rc.Value == "" {
				return next(c)
			}

			l := logging.FromContext(req.Context())
			sess, err := r.Refresh(req.Context(), rc.Value)
			if err != nil {
				l.Warn("auto_refresh_failed", "error", err)
				ClearSessionCookies(c, secure)
				return next(c)
			}

			SetSessionCookies(c, sess.Tokens, secure)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+sess.Tokens.AccessToken)
			l.Info("auto_refresh_success", "user_id", sess.User.ID)
			return next(c)
		}
	}
}

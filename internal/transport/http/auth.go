package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/middleware/auth"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/tokens"
	"github.com/Skotchmaster/bookstore/internal/transport"
)

type AuthHTTP struct {
	Svc          *service.AuthService
	CookieSecure bool
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "register_error", err)
	}

	sess, err := h.Svc.Register(ctx, req.Input())
	if err != nil {
		return fail(l, "register_error", err)
	}

	auth.SetSessionCookies(c, sess.Tokens, h.CookieSecure)
	l.Info("register_success", "user_id", sess.User.ID)
	return c.JSON(http.StatusCreated, transport.NewLoginResponse(sess))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "login_error", err)
	}

	sess, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(l, "login_failed", err)
	}

	auth.SetSessionCookies(c, sess.Tokens, h.CookieSecure)
	l.Info("login_successful", "user_id", sess.User.ID)
	return c.JSON(http.StatusOK, transport.NewLoginResponse(sess))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	rc, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || rc.Value == "" {
		return fail(l, "refresh_failed", echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token"))
	}

	sess, err := h.Svc.Refresh(ctx, rc.Value)
	if err != nil {
		auth.ClearSessionCookies(c, h.CookieSecure)
		return fail(l, "refresh_failed", err)
	}

	auth.SetSessionCookies(c, sess.Tokens, h.CookieSecure)
	return c.JSON(http.StatusOK, transport.NewLoginResponse(sess))
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	if rc, err := c.Cookie(tokens.RefreshCookie); err == nil {
		if err := h.Svc.Logout(ctx, rc.Value); err != nil {
			auth.ClearSessionCookies(c, h.CookieSecure)
			return fail(l, "logout_failed", err)
		}
	}

	auth.ClearSessionCookies(c, h.CookieSecure)
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) CheckUsername(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.check_username")

	taken, err := h.Svc.UsernameTaken(ctx, c.QueryParam("username"))
	if err != nil {
		return fail(l, "check_username_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"is_taken": taken})
}

func (h *AuthHTTP) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.profile")

	p, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.Profile(ctx, p)
	if err != nil {
		return fail(l, "profile_error", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.update_profile")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req transport.ProfileRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "profile_update_error", err)
	}

	user, err := h.Svc.UpdateProfile(ctx, p, req.Patch())
	if err != nil {
		return fail(l, "profile_update_error", err)
	}
	l.Info("profile_update_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, user)
}

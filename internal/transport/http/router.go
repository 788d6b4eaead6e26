package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/middleware/auth"
	"github.com/Skotchmaster/bookstore/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/bookstore/internal/middleware/logging"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/tokens"
)

const (
	apiPrefix = "/api/v1"
	cartPath  = apiPrefix + "/cart"
)

type Deps struct {
	Repo     *repo.GormRepo
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Orders   *service.OrderService

	AccessSecret []byte
	CookieSecure bool
	// AuthRateLimit is requests per second per client IP on login and register; zero disables it.
	AuthRateLimit float64
	CORSOrigins   []string
}

// New builds the echo instance with the full middleware chain and all routes.
func New(log *slog.Logger, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(log),
		middleware.SecureWithConfig(middleware.SecureConfig{
			XSSProtection:      "1; mode=block",
			ContentTypeNosniff: "nosniff",
			XFrameOptions:      "DENY",
			ReferrerPolicy:     "same-origin",
		}),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-CSRF-Token"},
		}),
		middleware.BodyLimit("1M"),
		csrf.Middleware(csrf.Config{
			Secure:         d.CookieSecure,
			SessionCookies: []string{tokens.AccessCookie, tokens.RefreshCookie},
			SkipPaths: []string{
				apiPrefix + "/auth/login",
				apiPrefix + "/auth/register",
				apiPrefix + "/auth/refresh",
			},
		}),
	)

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	authH := &AuthHTTP{Svc: d.Auth, CookieSecure: d.CookieSecure}
	books := &CatalogHTTP{Svc: d.Catalog}
	cart := &CartHTTP{Svc: d.Cart}
	checkout := &CheckoutHTTP{Svc: d.Checkout, CartURL: cartPath}
	orders := &OrderHTTP{Svc: d.Orders}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if err := d.Repo.Ping(c.Request().Context()); err != nil {
			logging.FromContext(c.Request().Context()).Error("readiness_failed", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	v1 := e.Group(apiPrefix)
	login := []echo.MiddlewareFunc{
		auth.AutoRefresh(d.AccessSecret, d.Auth, d.CookieSecure),
		auth.RequireLogin(d.AccessSecret),
	}
	admin := append(login[:len(login):len(login)], auth.RequireAdmin)

	a := v1.Group("/auth")
	a.POST("/register", authH.Register, authLimiter(d.AuthRateLimit))
	a.POST("/login", authH.Login, authLimiter(d.AuthRateLimit))
	a.POST("/refresh", authH.Refresh)
	a.POST("/logout", authH.Logout)
	a.GET("/check-username", authH.CheckUsername)

	b := v1.Group("/books")
	b.GET("", books.ListBooks)
	b.GET("/search", books.SearchBooks)
	b.GET("/:id", books.GetBook)
	b.POST("", books.CreateBook, admin...)
	b.PATCH("/:id", books.PatchBook, admin...)
	b.DELETE("/:id", books.DeleteBook, admin...)

	v1.GET("/profile", authH.Profile, login...)
	v1.PATCH("/profile", authH.UpdateProfile, login...)

	ct := v1.Group("/cart", login...)
	ct.GET("", cart.GetCart)
	ct.POST("/items", cart.AddItem)
	ct.PATCH("/items/:id", cart.UpdateItem)
	ct.DELETE("/items/:id", cart.RemoveItem)

	co := v1.Group("/checkout", login...)
	co.GET("", checkout.Preview)
	co.POST("", checkout.Checkout)

	o := v1.Group("/orders", login...)
	o.GET("", orders.ListOrders)
	o.GET("/:id", orders.GetOrder)
}

func authLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := int(perSecond) * 2
	if burst < 1 {
		burst = 1
	}
	deny := func(c echo.Context, _ string, _ error) error {
		return c.JSON(http.StatusTooManyRequests, echo.Map{"message": "rate limit exceeded"})
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "cannot identify client"})
		},
		DenyHandler: deny,
	})
}

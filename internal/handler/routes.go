package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mkrell/selene/internal/middleware"
)

// RouterConfig carries everything route registration needs.
type RouterConfig struct {
	Checkout *CheckoutHandler
	Webhook  *WebhookHandler
	Admin    *AdminHandler

	AdminJWTSecret string
	HTTPMetrics    *middleware.HTTPMetrics
	Logger         zerolog.Logger

	// Healthcheck reports readiness, typically a database ping.
	Healthcheck func(c echo.Context) error
}

// NewRouter builds the echo instance with all routes and middleware wired.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(cfg.Logger)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(cfg.Logger))
	if cfg.HTTPMetrics != nil {
		e.Use(cfg.HTTPMetrics.Middleware())
	}

	// Public storefront API.
	api := e.Group("/api")
	api.POST("/orders", cfg.Checkout.CreateOrder)
	api.GET("/orders/:number", cfg.Checkout.GetOrder)

	// Gateway callbacks. No auth middleware; the signature is the auth.
	e.POST("/webhooks/payment", cfg.Webhook.HandleEvent)

	// Back office.
	admin := e.Group("/admin", middleware.AdminAuth(cfg.AdminJWTSecret))
	admin.GET("/orders", cfg.Admin.ListOrders)
	admin.GET("/orders/:id", cfg.Admin.GetOrder)
	admin.PATCH("/orders/:id/status", cfg.Admin.UpdateStatus)
	admin.PATCH("/orders/:id/shipping", cfg.Admin.UpdateShipping)
	admin.GET("/products", cfg.Admin.ListProducts)
	admin.POST("/products", cfg.Admin.CreateProduct)
	admin.PATCH("/products/:id", cfg.Admin.UpdateProduct)
	admin.DELETE("/products/:id", cfg.Admin.DeleteProduct)

	// Operational surfaces.
	healthcheck := cfg.Healthcheck
	if healthcheck == nil {
		healthcheck = func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
	}
	e.GET("/healthz", healthcheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crumbsandco/crumbs-backend/api/controllers"
	"github.com/crumbsandco/crumbs-backend/api/middleware"
	authsvc "github.com/crumbsandco/crumbs-backend/internal/auth"
	cartsvc "github.com/crumbsandco/crumbs-backend/internal/cart"
	checkoutsvc "github.com/crumbsandco/crumbs-backend/internal/checkout"
	flavorsvc "github.com/crumbsandco/crumbs-backend/internal/flavors"
	"github.com/crumbsandco/crumbs-backend/internal/notifications"
	ordersvc "github.com/crumbsandco/crumbs-backend/internal/orders"
	productsvc "github.com/crumbsandco/crumbs-backend/internal/products"
	promosvc "github.com/crumbsandco/crumbs-backend/internal/promos"
	settingsvc "github.com/crumbsandco/crumbs-backend/internal/settings"
	stocksvc "github.com/crumbsandco/crumbs-backend/internal/stock"
	"github.com/crumbsandco/crumbs-backend/pkg/config"
	"github.com/crumbsandco/crumbs-backend/pkg/db"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	pkgredis "github.com/crumbsandco/crumbs-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Auth     authsvc.Service
	Flavors  flavorsvc.Service
	Products productsvc.Service
	Stock    stocksvc.Service
	Promos   promosvc.Service
	Cart     cartsvc.Service
	Checkout checkoutsvc.Service
	Orders   ordersvc.Service
	Settings settingsvc.Service
	OTP      *notifications.OTPService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	registry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, cfg.Checkout.IdempotencyTTL, logg))

		r.Get("/flavors", controllers.FlavorsList(svcs.Flavors, logg))
		r.Get("/products", controllers.ProductsList(svcs.Products, logg))
		r.Get("/settings", controllers.SettingsPublic(svcs.Settings, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			r.Post("/reset", controllers.CartReset(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{itemID}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(svcs.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))
		r.Get("/orders/track", controllers.OrderTrack(svcs.Orders, logg))
		r.Post("/promos/validate", controllers.PromoValidate(svcs.Promos, logg))

		if svcs.OTP != nil {
			r.Post("/otp/send", controllers.OTPSend(svcs.OTP, logg))
			r.Post("/otp/verify", controllers.OTPVerify(svcs.OTP, logg))
		}
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, redisClient, logg)).
			Post("/auth/login", controllers.AdminLogin(svcs.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(redisClient, cfg.Checkout.IdempotencyTTL, logg))

			r.Post("/auth/change-password", controllers.AdminChangePassword(svcs.Auth, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrdersList(svcs.Orders, logg))
				r.Get("/{orderID}", controllers.AdminOrderGet(svcs.Orders, logg))
				r.Post("/{orderID}/status", controllers.AdminOrderUpdateStatus(svcs.Orders, logg))
				r.Post("/{orderID}/cancel", controllers.AdminOrderCancel(svcs.Orders, logg))
				r.Post("/{orderID}/mark-paid", controllers.AdminOrderMarkPaid(svcs.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.AdminRoleOwner, enums.AdminRoleKitchen)).
					Post("/{orderID}/assign", controllers.AdminOrderAssign(svcs.Orders, logg))
			})

			r.Route("/flavors", func(r chi.Router) {
				r.Get("/", controllers.AdminFlavorsList(svcs.Flavors, logg))
				r.Get("/{flavorID}/stock/history", controllers.AdminStockHistory(svcs.Stock, logg))
				r.Get("/{flavorID}/stock/reconcile", controllers.AdminStockReconcile(svcs.Stock, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.AdminRoleOwner, enums.AdminRoleKitchen))
					r.Post("/", controllers.AdminFlavorCreate(svcs.Flavors, logg))
					r.Patch("/{flavorID}", controllers.AdminFlavorUpdate(svcs.Flavors, logg))
					r.Post("/{flavorID}/stock/adjust", controllers.AdminStockAdjust(svcs.Stock, logg))
				})
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminProductsList(svcs.Products, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.AdminRoleOwner))
					r.Post("/", controllers.AdminProductCreate(svcs.Products, logg))
					r.Patch("/{productID}", controllers.AdminProductUpdate(svcs.Products, logg))
				})
			})

			r.Route("/promos", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.AdminRoleOwner))
				r.Get("/", controllers.AdminPromosList(svcs.Promos, logg))
				r.Post("/", controllers.AdminPromoCreate(svcs.Promos, logg))
				r.Patch("/{promoID}", controllers.AdminPromoSetActive(svcs.Promos, logg))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", controllers.AdminSettingsGet(svcs.Settings, logg))
				r.With(middleware.RequireRole(logg, enums.AdminRoleOwner)).
					Put("/", controllers.AdminSettingsUpdate(svcs.Settings, logg))
			})

			r.Route("/admins", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.AdminRoleOwner))
				r.Get("/", controllers.AdminList(svcs.Auth, logg))
				r.Post("/", controllers.AdminCreate(svcs.Auth, logg))
				r.Patch("/{adminID}", controllers.AdminSetActive(svcs.Auth, logg))
			})
		})
	})

	return r
}

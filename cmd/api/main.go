package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crumbsandco/crumbs-backend/api/routes"
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
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	"github.com/crumbsandco/crumbs-backend/pkg/metrics"
	"github.com/crumbsandco/crumbs-backend/pkg/migrate"
	"github.com/crumbsandco/crumbs-backend/pkg/paymob"
	pkgredis "github.com/crumbsandco/crumbs-backend/pkg/redis"
	"github.com/crumbsandco/crumbs-backend/pkg/sms"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	stockMetrics := metrics.NewStockMetrics(registry)

	smsClient, err := sms.NewClient(cfg.SMS, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sms client", err)
		os.Exit(1)
	}

	svcs, err := buildServices(cfg, logg, dbClient, redisClient, smsClient, checkoutMetrics, stockMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *pkgredis.Client,
	smsClient sms.Sender,
	checkoutMetrics *metrics.CheckoutMetrics,
	stockMetrics *metrics.StockMetrics,
) (routes.Services, error) {
	gormDB := dbClient.DB()

	flavorRepo := flavorsvc.NewRepository(gormDB)
	productRepo := productsvc.NewRepository(gormDB)
	cartRepo := cartsvc.NewRepository(gormDB)
	promoRepo := promosvc.NewRepository(gormDB)
	settingsRepo := settingsvc.NewRepository(gormDB)
	orderRepo := ordersvc.NewRepository(gormDB)
	historyRepo := stocksvc.NewHistoryRepository(gormDB)
	adminRepo := authsvc.NewRepository(gormDB)

	flavorService, err := flavorsvc.NewService(flavorRepo)
	if err != nil {
		return routes.Services{}, err
	}
	productService, err := productsvc.NewService(productRepo)
	if err != nil {
		return routes.Services{}, err
	}
	stockService, err := stocksvc.NewService(historyRepo, flavorRepo, dbClient, stockMetrics)
	if err != nil {
		return routes.Services{}, err
	}
	promoService, err := promosvc.NewService(promoRepo)
	if err != nil {
		return routes.Services{}, err
	}
	cartService, err := cartsvc.NewService(cartRepo, productRepo, flavorRepo)
	if err != nil {
		return routes.Services{}, err
	}
	settingsService, err := settingsvc.NewService(settingsRepo)
	if err != nil {
		return routes.Services{}, err
	}
	authService, err := authsvc.NewService(adminRepo, cfg.JWT, cfg.Password)
	if err != nil {
		return routes.Services{}, err
	}

	notifier, err := notifications.NewNotifier(smsClient, logg)
	if err != nil {
		return routes.Services{}, err
	}
	otpService, err := notifications.NewOTPService(redisClient, smsClient, cfg.OTP, logg)
	if err != nil {
		return routes.Services{}, err
	}

	orderService, err := ordersvc.NewService(orderRepo, dbClient, stockService, notifier, settingsService)
	if err != nil {
		return routes.Services{}, err
	}

	checkoutDeps := checkoutsvc.Deps{
		Tx:       dbClient,
		Carts:    cartRepo,
		CartSvc:  cartService,
		Products: productRepo,
		Flavors:  flavorRepo,
		Stock:    stockService,
		Promos:   promoService,
		Settings: settingsService,
		Orders:   orderRepo,
		Notifier: notifier,
		Logger:   logg,
		Metrics:  checkoutMetrics,
	}
	// Card payments stay disabled until Paymob credentials are configured;
	// cash checkout works either way.
	if cfg.Paymob.APIKey != "" {
		gateway, gwErr := paymob.NewClient(cfg.Paymob, logg)
		if gwErr != nil {
			return routes.Services{}, gwErr
		}
		checkoutDeps.Gateway = gateway
	}
	checkoutService, err := checkoutsvc.NewService(checkoutDeps)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:     authService,
		Flavors:  flavorService,
		Products: productService,
		Stock:    stockService,
		Promos:   promoService,
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		Settings: settingsService,
		OTP:      otpService,
	}, nil
}

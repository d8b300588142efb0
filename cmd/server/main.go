package main

import (
	"os"
	"strings"
	"time"

	"warehouse-backend/internal/admin"
	"warehouse-backend/internal/apierror"
	"warehouse-backend/internal/audit"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/config"
	"warehouse-backend/internal/customer"
	"warehouse-backend/internal/dashboard"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/inventory"
	"warehouse-backend/internal/logger"
	"warehouse-backend/internal/metrics"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/payment"
	"warehouse-backend/internal/voucher"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Init(cfg.Env); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Log.Error("invalid configuration", zap.Error(err))
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		logger.Log.Warn(w)
	}

	if err := database.Init(cfg); err != nil {
		logger.Log.Error("database init failed", zap.Error(err))
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	app.Use(recover.New())
	app.Use(logger.Middleware())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/health", healthHandler())
	if cfg.MetricsEnabled {
		app.Get("/metrics", metrics.Handler())
	}

	rev := auth.NewRevocations()
	api := app.Group("/api")

	// Public auth
	api.Post("/admin/login", auth.AdminLoginHandler(cfg))
	api.Post("/warehouse-manager/login", auth.ManagerLoginHandler(cfg))
	api.Post("/warehouses/:id/login", auth.WarehouseLoginHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.RequireSession(cfg, rev))

	protected.Post("/auth/logout", auth.LogoutHandler(rev))
	protected.Get("/auth/me", auth.MeHandler())

	// Inventory API, rate limited per IP
	limit := limiter.New(limiter.Config{
		Max:        cfg.RateLimitPerMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, try again in a minute")
		},
	})
	protected.Get("/warehouses", limit, inventory.ListWarehousesHandler())
	protected.Get("/warehouses/:id/inventory", limit, auth.RequireBranchAccess("id"), inventory.WarehouseInventoryHandler())
	protected.Post("/inventory/add", limit, inventory.AddStockHandler())
	protected.Post("/inventory/withdraw", limit, inventory.WithdrawStockHandler())
	protected.Patch("/inventory/set-min", limit, inventory.SetMinHandler())
	protected.Post("/inventory/transfer", limit, inventory.TransferStockHandler())
	protected.Post("/inventory/adjust", limit, auth.RequireRole(models.RoleSuperAdmin, models.RoleStoreManager), inventory.AdjustStockHandler())
	protected.Get("/inventory/check", limit, inventory.CheckStockHandler())
	protected.Delete("/products/:id", limit, auth.RequireRole(models.RoleSuperAdmin), inventory.DeactivateProductHandler())

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	adminRoutes.Post("/branches", admin.CreateBranchHandler())
	adminRoutes.Get("/branches", admin.ListBranchesHandler())
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler())
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler())
	adminRoutes.Put("/branches/:id/password", admin.SetBranchPasswordHandler())
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler())

	adminRoutes.Get("/categories", inventory.ListCategoriesHandler())
	adminRoutes.Post("/categories", inventory.CreateCategoryHandler())
	adminRoutes.Put("/categories/:id", inventory.UpdateCategoryHandler())
	adminRoutes.Delete("/categories/:id", inventory.DeleteCategoryHandler())

	adminRoutes.Get("/products", inventory.ListProductsHandler())
	adminRoutes.Post("/products", inventory.CreateProductHandler())
	adminRoutes.Put("/products/:id", inventory.UpdateProductHandler())
	adminRoutes.Delete("/products/:id", inventory.DeactivateProductHandler())

	adminRoutes.Post("/users", auth.CreateUserHandler())
	adminRoutes.Get("/users", auth.ListUsersHandler())

	// Shared routes
	protected.Get("/products", inventory.ListProductsHandler())
	protected.Get("/categories", inventory.ListCategoriesHandler())

	dash := protected.Group("/dashboard")
	dash.Use(auth.RequireRole(models.RoleSuperAdmin, models.RoleStoreManager, models.RoleAccountant))
	dash.Get("/kpis", dashboard.KPIsHandler())
	dash.Get("/summary", dashboard.SummaryHandler())
	dash.Get("/summary.xlsx", dashboard.SummaryExportHandler())

	protected.Post("/customers", customer.CreateCustomerHandler())
	protected.Get("/customers", customer.ListCustomersHandler())
	protected.Get("/customers/:id", customer.GetCustomerHandler())
	protected.Get("/customers/:id/statement", customer.StatementHandler())
	protected.Get("/customers/:id/statement.xlsx", customer.StatementExportHandler())

	protected.Post("/issue-vouchers", voucher.CreateIssueVoucherHandler())
	protected.Get("/issue-vouchers", voucher.ListIssueVouchersHandler())
	protected.Get("/issue-vouchers/:id", voucher.GetIssueVoucherHandler())
	protected.Post("/issue-vouchers/:id/status", voucher.ChangeIssueStatusHandler())
	protected.Post("/return-vouchers", voucher.CreateReturnVoucherHandler())
	protected.Get("/return-vouchers", voucher.ListReturnVouchersHandler())
	protected.Post("/return-vouchers/:id/cancel", voucher.CancelReturnVoucherHandler())

	protected.Post("/payments", payment.CreatePaymentHandler())
	protected.Get("/payments", payment.ListPaymentsHandler())
	protected.Delete("/payments/:id", payment.DeletePaymentHandler())

	protected.Get("/movements", inventory.ListMovementsHandler())
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	logger.Log.Info("server listening", zap.String("port", cfg.HTTPPort))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.Log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

// GET /health
func healthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

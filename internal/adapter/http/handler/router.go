package handler

import (
	"sevapay/internal/adapter/http/middleware"
	redisStore "sevapay/internal/adapter/storage/redis"
	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	TopupSvc       ports.TopupService
	SettlementSvc  ports.SettlementService
	RechargeSvc    ports.RechargeService
	TokenSvc       ports.TokenService
	Notifier       ports.BalanceNotifier
	CallbackDedupe ports.CallbackDedupe
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	staffOnly := middleware.RequireRoles(domain.RoleAdmin, domain.RoleEmployee)
	adminOnly := middleware.RequireRoles(domain.RoleAdmin)

	v1 := r.Group("/api/v1")

	// --- Wallet (any authenticated role) ---
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.TopupSvc, deps.Notifier)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("wallet"), walletHandler.GetBalance)
		wallet.GET("/balance/stream", walletHandler.StreamBalance)
		wallet.GET("/transactions", rl("wallet"), walletHandler.ListTransactions)
		wallet.POST("/topup", rl("topup"), walletHandler.Topup)
		wallet.POST("/withdraw", rl("withdraw"), walletHandler.Withdraw)
	}

	// --- Applications ---
	appHandler := NewApplicationHandler(deps.SettlementSvc)
	apps := v1.Group("/applications", jwtAuth)
	{
		apps.POST("", rl("applications"), appHandler.Submit)
		apps.GET("", rl("applications"), appHandler.List)
		apps.GET("/:id", rl("applications"), appHandler.Get)
		apps.POST("/:id/reapply", rl("applications"), appHandler.Reapply)

		// Settlement decisions are staff-only; deletion is admin-only
		apps.POST("/:id/approve", staffOnly, rl("settle"), appHandler.Approve)
		apps.POST("/:id/reject", staffOnly, rl("settle"), appHandler.Reject)
		apps.POST("/:id/complete", staffOnly, rl("settle"), appHandler.Complete)
		apps.DELETE("/:id", adminOnly, rl("settle"), appHandler.Delete)
	}

	// --- Recharges ---
	rechargeHandler := NewRechargeHandler(deps.RechargeSvc)
	recharge := v1.Group("/recharge", jwtAuth)
	{
		recharge.GET("/detect", rl("catalog"), rechargeHandler.Detect)
		recharge.GET("/plans", rl("catalog"), rechargeHandler.Plans)
		recharge.GET("/bill", rl("catalog"), rechargeHandler.Bill)
		recharge.POST("", rl("recharge"), rechargeHandler.Purchase)
	}

	// --- Provider callbacks (no JWT; providers are not portal users) ---
	callbackHandler := NewCallbackHandler(deps.TopupSvc, deps.RechargeSvc, deps.CallbackDedupe, deps.Logger)
	callbacks := v1.Group("/callbacks")
	{
		callbacks.POST("/gateway", rl("callbacks"), callbackHandler.Gateway)
		callbacks.POST("/recharge", rl("callbacks"), callbackHandler.Recharge)
	}

	return r
}

package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/common/cache"
	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/config"
	"github.com/dumeirei/camp-station-backend/internal/common/jwt"
	"github.com/dumeirei/camp-station-backend/internal/common/lock"
	"github.com/dumeirei/camp-station-backend/internal/common/metrics"
	"github.com/dumeirei/camp-station-backend/internal/common/qrcode"
	paymentHandler "github.com/dumeirei/camp-station-backend/internal/handler/payment"
	pricingHandler "github.com/dumeirei/camp-station-backend/internal/handler/pricing"
	reservationHandler "github.com/dumeirei/camp-station-backend/internal/handler/reservation"
	"github.com/dumeirei/camp-station-backend/internal/middleware"
	"github.com/dumeirei/camp-station-backend/internal/repository"
	pricingService "github.com/dumeirei/camp-station-backend/internal/service/pricing"
	reservationService "github.com/dumeirei/camp-station-backend/internal/service/reservation"
)

// 请求体上限
const maxRequestBody = 1 << 20

// services 应用服务
type services struct {
	rules      *pricingService.RuleService
	calculator *pricingService.Calculator
	lifecycle  *reservationService.Lifecycle
	booking    *reservationService.BookingService
}

// newServices 初始化仓储和服务，redisClient 为 nil 时不使用缓存
func newServices(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, m *metrics.Metrics) *services {
	var cmd redis.Cmdable
	if redisClient != nil {
		cmd = redisClient
	}
	clk := clock.Real{}
	reservationCfg := &cfg.Business.Reservation

	// 初始化仓储
	siteRepo := repository.NewSiteRepository(db)
	ruleRepo := repository.NewPricingRuleRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	guestRepo := repository.NewGuestRepository(db)

	var locker lock.Locker = lock.NewLocalLocker()
	if reservationCfg.LockBackend == config.LockBackendRedis && redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, reservationCfg.LockTTL)
	}

	// 初始化服务
	rules := pricingService.NewRuleService(ruleRepo, siteRepo, cache.New(cmd), cfg.Business.Pricing.RulesCacheTTL, m)
	calculator := pricingService.NewCalculator(rules, siteRepo, clk, m, pricingService.WithMaxNights(reservationCfg.MaxNights))
	guard := reservationService.NewGuard(db, reservationRepo, paymentRepo, guestRepo, locker, reservationCfg.LockWait, clk, m)
	lifecycle := reservationService.NewLifecycle(db, reservationRepo, paymentRepo, reservationService.LogRefundRequester{}, clk,
		reservationService.LifecycleConfig{
			PaymentTimeout: reservationCfg.PaymentTimeout(),
			SweepBatchSize: reservationCfg.SweepBatchSize,
		}, m)
	booking := reservationService.NewBookingService(siteRepo, reservationRepo, calculator, guard, lifecycle, clk, calculator.MaxNights())

	return &services{
		rules:      rules,
		calculator: calculator,
		lifecycle:  lifecycle,
		booking:    booking,
	}
}

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	m *metrics.Metrics,
	svc *services,
) {
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
	})

	// 全局中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Tracing(&middleware.TracingConfig{
		ServiceName: cfg.Tracing.ServiceName,
		SkipPaths:   []string{"/health", "/ping", "/ready", cfg.Metrics.Path},
	}))
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.CORSFromConfig(&cfg.CORS))
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.RequestSizeLimiter(maxRequestBody))
	if m != nil {
		r.Use(m.Middleware())
	}

	// 健康检查与监控
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}

	// Swagger 文档，生产环境不开放
	if !cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	pricingH := pricingHandler.NewHandler(svc.rules, svc.calculator)
	reservationH := reservationHandler.NewHandler(svc.booking, qrcode.NewGenerator(qrcode.WithSize(cfg.Business.Reservation.VoucherSize)))
	paymentH := paymentHandler.NewHandler(svc.booking)

	v1 := r.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		var cmd redis.Cmdable
		if redisClient != nil {
			cmd = redisClient
		}
		v1.Use(middleware.OptionalAuth(jwtManager))
		v1.Use(middleware.UserRateLimit(cache.New(cmd), cfg.RateLimit.RequestsPerMinute, time.Minute))
	}

	registerRoutes(v1, jwtManager, cfg.Server.InternalToken, pricingH, reservationH, paymentH)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "not found"})
	})
}

// registerRoutes 注册业务路由
func registerRoutes(
	v1 *gin.RouterGroup,
	jwtManager *jwt.Manager,
	internalToken string,
	pricingH *pricingHandler.Handler,
	reservationH *reservationHandler.Handler,
	paymentH *paymentHandler.Handler,
) {
	optional := middleware.OptionalAuth(jwtManager)
	loggedIn := middleware.RequireRoles(jwtManager)
	manager := middleware.RequireRoles(jwtManager, jwt.RoleOwner, jwt.RoleAdmin)

	// 营位
	sites := v1.Group("/sites/:id")
	{
		sites.POST("/price-quote", pricingH.Quote)
		sites.GET("/availability", reservationH.CheckAvailability)
		sites.GET("/reserved-dates", reservationH.SiteReservedDates)
		sites.GET("/pricing-rules", manager, pricingH.ListRules)
		sites.POST("/pricing-rules", manager, pricingH.CreateRule)
		sites.GET("/reservations", manager, reservationH.ListSiteReservations)
	}

	v1.GET("/campgrounds/:id/reserved-dates", reservationH.CampgroundReservedDates)

	// 定价规则
	rules := v1.Group("/pricing-rules", manager)
	{
		rules.GET("/:id", pricingH.GetRule)
		rules.PUT("/:id", pricingH.UpdateRule)
		rules.DELETE("/:id", pricingH.DeleteRule)
	}

	// 预订
	reservations := v1.Group("/reservations")
	{
		reservations.POST("", optional, reservationH.CreateReservation)
		reservations.GET("/my", loggedIn, reservationH.ListMyReservations)
		reservations.GET("/:id", loggedIn, reservationH.GetReservation)
		reservations.PUT("/:id", loggedIn, reservationH.UpdateReservation)
		reservations.POST("/:id/cancel", loggedIn, reservationH.CancelReservation)
		reservations.GET("/:id/voucher", loggedIn, reservationH.GetVoucher)
		reservations.POST("/:id/complete", manager, reservationH.CompleteReservation)
	}

	// 访客凭预订号和手机号管理预订
	guest := v1.Group("/guest/reservations")
	{
		guest.GET("", reservationH.GetGuestReservation)
		guest.POST("/cancel", reservationH.CancelGuestReservation)
	}

	// 支付服务回调
	payments := v1.Group("/payments/reservations/:id", middleware.InternalAuth(internalToken))
	{
		payments.POST("/confirmed", paymentH.Confirmed)
		payments.POST("/failed", paymentH.Failed)
		payments.POST("/confirmation-requested", paymentH.ConfirmationRequested)
	}
}

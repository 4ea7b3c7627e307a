package server

import (
	"context"
	"net/http"

	"tillpoint/internal/auth"
	"tillpoint/internal/clock"
	"tillpoint/internal/config"
	"tillpoint/internal/gate"
	"tillpoint/internal/notify"
	"tillpoint/internal/product"
	"tillpoint/internal/sale"
	"tillpoint/internal/subscription"
	"tillpoint/internal/sync"
	"tillpoint/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	notify *notify.Service
}

func New(db *sqlx.DB, cfg *config.Config, notifyService *notify.Service) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(50, 100))

	clk := clock.System()

	subscriptionRepo := subscription.NewRepository(db)
	productRepo := product.NewRepository(db)
	saleRepo := sale.NewRepository(db)
	queueStore := sync.NewQueueStore(db)
	userRepo := user.NewRepository(db)

	checker := gate.NewChecker(subscriptionRepo, clk, notifyService, userRepo)
	saleService := sale.NewService(saleRepo, productRepo)
	reconciler := sync.NewReconciler(queueStore, saleService, clk, notifyService, userRepo, sync.ReconcilerConfig{
		EntryTimeout: cfg.SyncEntryTimeout,
		MaxAttempts:  cfg.SyncMaxAttempts,
		BatchLimit:   cfg.SyncBatchLimit,
	})

	userHandler := user.NewHandler(user.NewService(userRepo, cfg.JWTSecret))
	subscriptionHandler := subscription.NewHandler(subscriptionRepo, clk, notifyService, userRepo)
	productHandler := product.NewHandler(productRepo)
	saleHandler := sale.NewHandler(saleService, checker)
	syncHandler := sync.NewHandler(reconciler, queueStore, checker)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)
	}

	stores := router.Group("/stores/:storeID")
	stores.Use(authMiddleware)
	{
		stores.GET("/subscription", subscriptionHandler.Status)
		stores.POST("/subscription/renew", auth.RequirePermission("billing:manage"), subscriptionHandler.Renew)
		stores.POST("/subscription/trial", auth.RequirePermission("billing:manage"), subscriptionHandler.CreateTrial)

		stores.GET("/products/:productID", productHandler.Get)
		stores.GET("/products/:productID/stock", productHandler.Stock)

		stores.POST("/sales", auth.RequirePermission("sales:create"), saleHandler.Create)
		stores.GET("/sales", auth.RequirePermission("reports:view"), saleHandler.List)
		stores.GET("/sales/:saleID", saleHandler.Get)
		stores.PATCH("/sales/:saleID/status", auth.RequirePermission("sales:refund"), saleHandler.UpdateStatus)

		stores.POST("/sync", auth.RequirePermission("sales:sync"), syncHandler.Sync)
		stores.POST("/sync/queue", auth.RequirePermission("sales:sync"), syncHandler.Queue)
		stores.GET("/sync/pending", auth.RequirePermission("sales:sync"), syncHandler.Pending)
		stores.DELETE("/sync/:localID", auth.RequirePermission("sales:sync"), syncHandler.Purge)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/test-notification", TestNotification(notifyService))
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		notify: notifyService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

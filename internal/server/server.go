package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/f3impact/ignite/internal/checkout"
	checkoutdomain "github.com/f3impact/ignite/internal/checkout/domain"
	"github.com/f3impact/ignite/internal/config"
	"github.com/f3impact/ignite/internal/customer"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	"github.com/f3impact/ignite/internal/observability"
	obsmiddleware "github.com/f3impact/ignite/internal/observability/logger"
	obsmetrics "github.com/f3impact/ignite/internal/observability/metrics"
	"github.com/f3impact/ignite/internal/order"
	orderdomain "github.com/f3impact/ignite/internal/order/domain"
	"github.com/f3impact/ignite/internal/payment"
	paymentdomain "github.com/f3impact/ignite/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	customer.Module,
	order.Module,
	payment.Module,
	checkout.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	customerSvc customerdomain.Service
	orderSvc    orderdomain.Service
	checkoutSvc checkoutdomain.Service
	webhookSvc  paymentdomain.WebhookService
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	CustomerSvc customerdomain.Service
	OrderSvc    orderdomain.Service
	CheckoutSvc checkoutdomain.Service
	WebhookSvc  paymentdomain.WebhookService
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		customerSvc: p.CustomerSvc,
		orderSvc:    p.OrderSvc,
		checkoutSvc: p.CheckoutSvc,
		webhookSvc:  p.WebhookSvc,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/stripe", s.HandleStripeWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Checkout --------
	api.POST("/checkout/sessions", s.CreateCheckoutSession)
	api.GET("/checkout/sessions/:id", s.VerifyCheckoutSession)

	// -------- Customers --------
	api.GET("/customers/:id/orders", s.ListCustomerOrders)

	// -------- Events --------
	api.GET("/events/:event/stats", s.GetEventStats)
}

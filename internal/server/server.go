package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/invobook/invobook/internal/audit"
	auditdomain "github.com/invobook/invobook/internal/audit/domain"
	"github.com/invobook/invobook/internal/config"
	"github.com/invobook/invobook/internal/customer"
	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	"github.com/invobook/invobook/internal/invoice"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
	"github.com/invobook/invobook/internal/recurring"
	recurringdomain "github.com/invobook/invobook/internal/recurring/domain"
)

var Module = fx.Module("http.server",
	audit.Module,
	customer.Module,
	invoice.Module,
	recurring.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestContext())
	r.Use(MetricsMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	auditSvc     auditdomain.Service
	customerSvc  customerdomain.Service
	invoiceSvc   invoicedomain.Service
	recurringSvc recurringdomain.Service
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	AuditSvc     auditdomain.Service
	CustomerSvc  customerdomain.Service
	InvoiceSvc   invoicedomain.Service
	RecurringSvc recurringdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,
		genID:  p.GenID,

		auditSvc:     p.AuditSvc,
		customerSvc:  p.CustomerSvc,
		invoiceSvc:   p.InvoiceSvc,
		recurringSvc: p.RecurringSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.OrgRequired())

	customers := v1.Group("/customers")
	customers.POST("", s.CreateCustomer)
	customers.GET("", s.ListCustomers)
	customers.GET("/:id", s.GetCustomer)

	invoices := v1.Group("/invoices")
	invoices.GET("/:id", s.GetInvoice)
	invoices.DELETE("/:id", s.DeleteInvoice)
	invoices.POST("/:id/recover", s.RecoverInvoice)
	invoices.POST("/:id/share", s.ShareInvoice)
	invoices.POST("/:id/payments", s.AddPayment)
	invoices.PUT("/:id/payments", s.SetPayment)
	invoices.GET("/:id/payments", s.GetPaymentHistory)

	reports := v1.Group("/reports")
	reports.GET("/outstanding", s.GetOutstandingSummary)
	reports.GET("/profit", s.GetProfitSummary)

	templates := v1.Group("/recurring")
	templates.POST("", s.CreateRecurringTemplate)
	templates.GET("/:id", s.GetRecurringTemplate)
	templates.POST("/:id/generate", s.GenerateRecurringInvoice)

	v1.GET("/audit-logs", s.ListAuditLogs)
}

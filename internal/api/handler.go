package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"stock-ledger/internal/catalog"
	"stock-ledger/internal/ledger"
	"stock-ledger/internal/models"
	"stock-ledger/internal/service"
	"stock-ledger/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ProductService is the product side of the ledger
type ProductService interface {
	CreateProduct(ctx context.Context, req *service.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetSummary(ctx context.Context, id string) (*service.ProductSummary, error)
	AddStock(ctx context.Context, productID string, req *service.AddStockRequest) (*models.Product, error)
}

// ReservationService is the reservation side of the ledger
type ReservationService interface {
	Create(ctx context.Context, req *service.CreateReservationRequest) (*service.CreateReservationResponse, error)
	Update(ctx context.Context, id string, req *service.UpdateReservationRequest) (*models.Reservation, error)
	Cancel(ctx context.Context, id string) (*models.Reservation, error)
	Delete(ctx context.Context, id string) (*models.Reservation, error)
	Get(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error)
	Availability(ctx context.Context, productID, label, excludingID string) (int, error)
	Deliver(ctx context.Context, id string, confirm bool) (*models.Reservation, error)
	RevertDelivery(ctx context.Context, id string, confirm bool) (*models.Reservation, error)
}

// CustomerService manages customers
type CustomerService interface {
	Create(ctx context.Context, req *service.CreateCustomerRequest) (*models.Customer, error)
	Get(ctx context.Context, id string) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	Delete(ctx context.Context, id string) error
}

// GroupService lists and edits reservation groups
type GroupService interface {
	ListGroups(ctx context.Context, f models.ReservationFilter) ([]ledger.Group, error)
	GetGroup(ctx context.Context, customerID, date string) (*ledger.Group, error)
	EditGroup(ctx context.Context, customerID, date string, req *service.EditGroupRequest) (*ledger.Group, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	products     ProductService
	reservations ReservationService
	customers    CustomerService
	groups       GroupService
	dependencies map[string]Pinger
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(products ProductService, reservations ReservationService, customers CustomerService, groups GroupService) *Handler {
	return &Handler{
		products:     products,
		reservations: reservations,
		customers:    customers,
		groups:       groups,
		dependencies: make(map[string]Pinger),
		logger:       util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency the readiness probe pings
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.dependencies[name] = p
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/packages", h.listPackages)

		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/summary", h.getProductSummary)
		v1.GET("/products/:id/availability", h.getAvailability)
		v1.POST("/products/:id/stock", h.addStock)

		v1.POST("/customers", h.createCustomer)
		v1.GET("/customers", h.listCustomers)
		v1.GET("/customers/:id", h.getCustomer)
		v1.DELETE("/customers/:id", h.deleteCustomer)

		v1.POST("/reservations", h.createReservation)
		v1.GET("/reservations", h.listReservations)
		v1.GET("/reservations/:id", h.getReservation)
		v1.PATCH("/reservations/:id", h.updateReservation)
		v1.DELETE("/reservations/:id", h.deleteReservation)
		v1.POST("/reservations/:id/cancel", h.cancelReservation)
		v1.POST("/reservations/:id/deliver", h.deliverReservation)
		v1.POST("/reservations/:id/revert", h.revertDelivery)

		v1.GET("/reservation-groups", h.listGroups)
		v1.GET("/reservation-groups/:customerId/:date", h.getGroup)
		v1.PUT("/reservation-groups/:customerId/:date", h.editGroup)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listPackages returns the package catalog
func (h *Handler) listPackages(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.Sizes())
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

package main

import (
	"net/http"
	"time"

	"github.com/dreamware/shopstore/internal/collection"
	"github.com/dreamware/shopstore/internal/session"
	"github.com/dreamware/shopstore/internal/shop"
	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server holds everything the HTTP handlers need.
//
// Each handler maps a request to one shop or store call; no handler holds
// state between requests, so a Server is safe for concurrent use.
type Server struct {
	db         *collection.Database
	users      *shop.Users
	products   *shop.Products
	orders     *shop.Orders
	sessions   session.Store
	sessionTTL time.Duration
	health     healthcheck.Handler
}

// ServerOptions configure NewServer
type ServerOptions struct {
	Users      shop.UsersOptions
	Orders     shop.OrdersOptions
	SessionTTL time.Duration // TTL of login sessions, 0 selects the store default
}

// NewServer wires the shop services over db and sessions
func NewServer(db *collection.Database, sessions session.Store, opts ServerOptions) *Server {
	products := shop.NewProducts(db.MustCollection(collection.Products))

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	health.AddReadinessCheck("storage", func() error {
		_, err := db.Info()
		return err
	})

	return &Server{
		db:         db,
		users:      shop.NewUsers(db.MustCollection(collection.Users), opts.Users),
		products:   products,
		orders:     shop.NewOrders(db.MustCollection(collection.Orders), products.Collection(), opts.Orders),
		sessions:   sessions,
		sessionTTL: opts.SessionTTL,
		health:     health,
	}
}

// AddReadinessCheck registers an extra readiness check, e.g. for Redis
func (s *Server) AddReadinessCheck(name string, check healthcheck.Check) {
	s.health.AddReadinessCheck(name, check)
}

// Router builds the gin engine with every route
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	// Logs every request like a combined access and error log, RFC3339 UTC
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	// Logs panics with their stack
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/live", gin.WrapF(s.health.LiveEndpoint))
	router.GET("/ready", gin.WrapF(s.health.ReadyEndpoint))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	collections := router.Group("/collections")
	{
		collections.GET("", s.handleListCollections)
		collections.GET("/:name", s.handleFindAll)
		collections.POST("/:name", s.handleCreate)
		collections.POST("/:name/find", s.handleFind)
		collections.GET("/:name/count", s.handleCount)
		collections.GET("/:name/:id", s.handleGet)
		collections.PATCH("/:name/:id", s.handleUpdate)
		collections.DELETE("/:name/:id", s.handleDelete)
	}

	router.GET("/products", s.handleListProducts)
	router.GET("/products/:id", s.handleGetProduct)

	router.POST("/orders", s.handlePlaceOrder)
	router.GET("/orders", s.handleAllOrders)
	router.GET("/orders/:id", s.handleGetOrder)
	router.PATCH("/orders/:id/status", s.handleUpdateOrderStatus)
	router.GET("/users/:id/orders", s.handleUserOrders)

	auth := router.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.POST("/logout", s.handleLogout)
		auth.GET("/session", s.handleSession)
		auth.PUT("/profile", s.requireSession, s.handleUpdateProfile)
		auth.POST("/change-password", s.requireSession, s.handleChangePassword)
	}

	admin := router.Group("/admin", s.requireSession, s.requireRole(shop.RoleAdmin))
	{
		admin.GET("/users", s.handleListUsers)
		admin.POST("/products", s.handleCreateProduct)
		admin.PUT("/products/:id", s.handleUpdateProduct)
		admin.DELETE("/products/:id", s.handleDeleteProduct)
	}

	sessions := router.Group("/sessions")
	{
		sessions.GET("", s.handleAllSessions)
		sessions.POST("/sweep", s.handleSweepSessions)
		sessions.PUT("/:id", s.handleSetSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.PATCH("/:id", s.handleUpdateSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
	}

	return router
}

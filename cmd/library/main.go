package main

import (
	"context"
	"net/http"
	"time"

	"library_catalog/pkg/catalog"
	"library_catalog/pkg/circulation"
	"library_catalog/pkg/circuitbreaker"
	"library_catalog/pkg/config"
	"library_catalog/pkg/database"
	"library_catalog/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	db       *gorm.DB
	svc      *circulation.Service
	lookup   *catalog.Client
	enricher *catalog.Enricher
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	logrus.Info("Starting library service...")

	var err error
	db, err = database.Open(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open database")
	}

	lookup = newCatalogClient(cfg)
	enricher = catalog.NewEnricher(lookup, db)
	svc = circulation.NewService(db, circulation.WithEnricher(enricher))

	scheduler, err := startJobs(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to schedule background jobs")
	}
	defer scheduler.Stop()

	server := newRouter()
	logrus.WithField("port", cfg.Port).Info("Library service listening")
	if err := server.Run(":" + cfg.Port); err != nil {
		logrus.WithError(err).Fatal("Server failed")
	}
}

func newCatalogClient(cfg config.Config) *catalog.Client {
	opts := []catalog.Option{
		catalog.WithTimeout(cfg.OpenLibraryTimeout),
		catalog.WithRateLimit(cfg.OpenLibraryRPS, 1),
		catalog.WithBreaker(circuitbreaker.NewCircuitBreakerWithWindow(5, 30*time.Second, time.Minute)),
	}
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		rdb, err := catalog.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			logrus.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, catalog lookups will not be cached")
		} else {
			opts = append(opts, catalog.WithCache(catalog.NewRedisCache(rdb)))
		}
	}
	return catalog.NewClient(cfg.OpenLibraryURL, opts...)
}

// startJobs schedules the overdue sweep and the enrichment retries.
func startJobs(cfg config.Config) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		if _, err := svc.MarkOverdue(context.Background()); err != nil {
			logrus.WithError(err).Error("scheduled overdue sweep failed")
		}
	}); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(cfg.EnrichRetrySchedule, func() {
		if _, err := enricher.ProcessRetries(context.Background()); err != nil {
			logrus.WithError(err).Error("enrichment retry run failed")
		}
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func newRouter() *gin.Engine {
	server := gin.Default()
	server.Use(metrics.Middleware())

	api := server.Group("/api/v1")
	api.GET("/books", getBooks)
	api.POST("/books", createBook)
	api.GET("/books/lookup/:isbn", lookupBook)
	api.GET("/books/search", searchCatalog)
	api.GET("/books/:bookUid", getBook)
	api.PUT("/books/:bookUid", updateBook)
	api.DELETE("/books/:bookUid", deleteBook)

	api.GET("/customers", getCustomers)
	api.POST("/customers", createCustomer)
	api.GET("/customers/:customerUid", getCustomer)
	api.PUT("/customers/:customerUid", updateCustomer)
	api.DELETE("/customers/:customerUid", deleteCustomer)

	api.GET("/reservations", getReservations)
	api.POST("/reservations", createReservation)
	api.POST("/reservations/sweep", sweepOverdue)
	api.GET("/reservations/:reservationUid", getReservation)
	api.POST("/reservations/:reservationUid/borrow", borrowBook)
	api.POST("/reservations/:reservationUid/renew", renewReservation)
	api.POST("/reservations/:reservationUid/return", returnBook)
	api.POST("/reservations/:reservationUid/pay", payFine)
	api.DELETE("/reservations/:reservationUid", cancelReservation)

	api.GET("/dashboard", getDashboard)

	server.GET("/manage/health", healthCheck)
	server.GET("/metrics", gin.WrapH(metrics.Handler()))
	return server
}

func healthCheck(c *gin.Context) {
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-ordering/internal/cache"
	"food-ordering/internal/clients"
	"food-ordering/internal/database"
	"food-ordering/internal/handlers"
	"food-ordering/internal/kafka"
	"food-ordering/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.InitOrdersDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Audit publication is best effort; run without it rather than refusing
	// to start.
	var audit middleware.AuditPublisher
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Warn("Kafka unavailable, audit events disabled", zap.Error(err))
	} else {
		audit = producer
		defer producer.Close()
	}

	// Same policy for the directory cache: every lookup falls through to the
	// restaurant service when Redis is down.
	rdb, err := cache.InitRedis(logger)
	if err != nil {
		logger.Warn("Redis unavailable, restaurant lookups uncached", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	shutdownTracing, err := middleware.InitTracing("order-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	restaurantClient := clients.NewRestaurantClient(rdb, logger)
	paymentClient := clients.NewPaymentClient(logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("order-service"))
	router.Use(middleware.CorrelationMiddleware())
	router.Use(middleware.LoggerMiddleware(logger, audit, "order-service"))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	orderHandler := handlers.NewOrderHandler(db, restaurantClient, paymentClient, logger)
	router.POST("/orders", orderHandler.CreateOrder)
	router.GET("/orders", orderHandler.GetOrders)
	router.GET("/orders/:id", orderHandler.GetOrder)
	router.GET("/orders/user/:userId", orderHandler.GetOrdersByUser)
	router.GET("/orders/:id/status", orderHandler.GetOrderStatus)
	router.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
	router.POST("/orders/:id/note", orderHandler.AddNote)
	router.PUT("/orders/:id/note", orderHandler.UpdateNote)
	router.DELETE("/orders/:id/note", orderHandler.DeleteNote)
	router.DELETE("/orders/:id", orderHandler.CancelOrder)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "3002"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Order Service started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

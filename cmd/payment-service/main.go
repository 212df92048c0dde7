package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"food-ordering/internal/clients"
	"food-ordering/internal/database"
	"food-ordering/internal/handlers"
	"food-ordering/internal/kafka"
	"food-ordering/internal/middleware"
	"food-ordering/internal/settlement"

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

	db, err := database.InitPaymentsDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	var audit middleware.AuditPublisher
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Warn("Kafka unavailable, audit events disabled", zap.Error(err))
	} else {
		audit = producer
		defer producer.Close()
	}

	shutdownTracing, err := middleware.InitTracing("payment-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	orderClient := clients.NewOrderClient(logger)
	decider := settlement.NewRandomDecider(successRate())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("payment-service"))
	router.Use(middleware.CorrelationMiddleware())
	router.Use(middleware.LoggerMiddleware(logger, audit, "payment-service"))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	paymentHandler := handlers.NewPaymentHandler(db, decider, orderClient, logger)
	router.POST("/payments", paymentHandler.CreatePayment)
	router.GET("/payments", paymentHandler.GetPayments)
	router.GET("/payments/:id", paymentHandler.GetPayment)
	router.GET("/payments/user/:userId", paymentHandler.GetPaymentsByUser)
	router.POST("/payments/:id/confirm", paymentHandler.ConfirmPayment)
	router.PUT("/payments/:id/status", paymentHandler.UpdatePaymentStatus)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "3003"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Payment Service started", zap.String("addr", srv.Addr))

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

func successRate() float64 {
	raw := getEnv("SETTLEMENT_SUCCESS_RATE", "0.9")
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0.9
	}
	return rate
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

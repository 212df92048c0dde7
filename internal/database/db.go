package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func openDB(defaultName string) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", defaultName)

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitOrdersDB opens the order store and ensures its schema. Items are kept
// as JSONB because the list is frozen after creation and only ever read back
// whole.
func InitOrdersDB(logger *zap.Logger) (*sql.DB, error) {
	db, err := openDB("orderdb")
	if err != nil {
		return nil, err
	}

	createTableQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		items JSONB NOT NULL,
		total_price DECIMAL(10, 2) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		delivery_status VARCHAR(50) NOT NULL DEFAULT 'pending',
		note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_restaurant_id ON orders (restaurant_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
	`

	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}

	logger.Info("Order database connection established")
	return db, nil
}

// InitPaymentsDB opens the payment store and ensures its schema.
func InitPaymentsDB(logger *zap.Logger) (*sql.DB, error) {
	db, err := openDB("paymentdb")
	if err != nil {
		return nil, err
	}

	createTableQuery := `
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(50) NOT NULL DEFAULT 'credit_card',
		transaction_id VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments (order_id);
	CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments (user_id);
	CREATE INDEX IF NOT EXISTS idx_payments_status ON payments (status);
	`

	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create payments table: %w", err)
	}

	logger.Info("Payment database connection established")
	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"financebackup/internal/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// InitDB connects to the configured database and makes sure the schema exists.
func InitDB(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err = Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return NewStore(db, cfg.Driver, cfg.ConnectionTimeout), nil
}

// Open opens a connection pool and pings it within cfg.ConnectionTimeout.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	dsn, err := DataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	return db, nil
}

// DataSourceName builds the driver specific connection string.
func DataSourceName(cfg config.DBConfig) (string, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		params := []struct{ key, value string }{
			{"host", cfg.Host},
			{"port", strconv.Itoa(cfg.Port)},
			{"user", cfg.User},
			{"password", cfg.Password},
			{"dbname", cfg.Name},
			{"sslmode", cfg.SSLMode},
			{"client_encoding", clientEncoding(cfg.Charset)},
			{"connect_timeout", strconv.Itoa(int(cfg.ConnectionTimeout / time.Second))},
		}
		parts := make([]string, 0, len(params))
		for _, p := range params {
			if p.value == "" {
				continue
			}
			parts = append(parts, p.key+"="+quoteValue(p.value))
		}
		return strings.Join(parts, " "), nil
	case config.DriverSQLite:
		busy := cfg.ConnectionTimeout.Milliseconds()
		return fmt.Sprintf("%s?_busy_timeout=%d", cfg.Name, busy), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// clientEncoding maps MySQL style charset names onto PostgreSQL encodings.
func clientEncoding(charset string) string {
	switch strings.ToLower(charset) {
	case "", "utf8", "utf8mb4", "utf-8":
		return "UTF8"
	case "latin1":
		return "LATIN1"
	default:
		return charset
	}
}

func quoteValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(36) PRIMARY KEY,
		date VARCHAR(10) NOT NULL,
		category VARCHAR(100) NOT NULL,
		type VARCHAR(10) NOT NULL,
		amount DECIMAL(10,2) NOT NULL,
		description TEXT,
		created_at VARCHAR(32) NOT NULL,
		updated_at VARCHAR(32) NOT NULL,
		synced INTEGER DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category)`,
	`CREATE TABLE IF NOT EXISTS budgets (
		id VARCHAR(36) PRIMARY KEY,
		category VARCHAR(100) NOT NULL UNIQUE,
		monthly_limit DECIMAL(10,2) NOT NULL,
		created_at VARCHAR(32) NOT NULL,
		updated_at VARCHAR(32) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE,
		type VARCHAR(10) NOT NULL,
		icon VARCHAR(50),
		created_at VARCHAR(32) NOT NULL
	)`,
}

// Migrate creates the tables if they don't exist. The statements are valid
// for both PostgreSQL and SQLite.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

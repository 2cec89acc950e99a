package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"financebackup/internal/config"
	"financebackup/internal/models"

	"github.com/shopspring/decimal"
)

// Store reads and writes backed up records.
type Store struct {
	db          *sql.DB
	driver      string
	pingTimeout time.Duration
}

func NewStore(db *sql.DB, driver string, pingTimeout time.Duration) *Store {
	return &Store{db: db, driver: driver, pingTimeout: pingTimeout}
}

// DB exposes the pool, mainly for stats collection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers within the configured connection timeout.
func (s *Store) Ping(ctx context.Context) error {
	if s.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.pingTimeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveBackup writes every record of data in a single transaction. Nothing is
// kept if any statement fails.
func (s *Store) SaveBackup(ctx context.Context, data *models.BackupData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err = s.saveTransactions(ctx, tx, data.Transactions); err != nil {
		return err
	}
	if err = s.saveBudgets(ctx, tx, data.Budgets); err != nil {
		return err
	}
	if err = s.saveCategories(ctx, tx, data.Categories); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (s *Store) saveTransactions(ctx context.Context, tx *sql.Tx, txns []models.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO transactions
			(id, date, category, type, amount, description, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			category = EXCLUDED.category,
			type = EXCLUDED.type,
			amount = EXCLUDED.amount,
			description = EXCLUDED.description,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			synced = EXCLUDED.synced`))
	if err != nil {
		return fmt.Errorf("error preparing transaction upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		_, err = stmt.ExecContext(ctx,
			t.ID, t.Date, t.Category, t.Type, cents(t.Amount),
			t.Description, t.CreatedAt, t.UpdatedAt, t.SyncedOrDefault())
		if err != nil {
			return fmt.Errorf("error saving transaction %s: %w", t.ID, err)
		}
	}
	return nil
}

// saveBudgets replaces any budget sharing the id or the category.
func (s *Store) saveBudgets(ctx context.Context, tx *sql.Tx, budgets []models.Budget) error {
	for _, b := range budgets {
		_, err := tx.ExecContext(ctx,
			s.rebind(`DELETE FROM budgets WHERE id = ? OR category = ?`),
			b.ID, b.Category)
		if err != nil {
			return fmt.Errorf("error replacing budget %s: %w", b.ID, err)
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO budgets (id, category, monthly_limit, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`),
			b.ID, b.Category, cents(b.MonthlyLimit), b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error saving budget %s: %w", b.ID, err)
		}
	}
	return nil
}

// saveCategories inserts new categories. A category that already exists under
// the same id, or failing that the same name, only gets its icon refreshed.
// At most one existing row is touched per category.
func (s *Store) saveCategories(ctx context.Context, tx *sql.Tx, categories []models.Category) error {
	for _, c := range categories {
		n, err := s.refreshIcon(ctx, tx, "id", c.ID, c.Icon)
		if err == nil && n == 0 {
			n, err = s.refreshIcon(ctx, tx, "name", c.Name, c.Icon)
		}
		if err != nil {
			return fmt.Errorf("error updating category %s: %w", c.ID, err)
		}
		if n > 0 {
			continue
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO categories (id, name, type, icon, created_at)
			VALUES (?, ?, ?, ?, ?)`),
			c.ID, c.Name, c.Type, nullString(c.Icon), c.CreatedAt)
		if err != nil {
			return fmt.Errorf("error saving category %s: %w", c.ID, err)
		}
	}
	return nil
}

// refreshIcon sets the icon of the category whose column equals value. column
// is one of the unique columns, never client input.
func (s *Store) refreshIcon(ctx context.Context, tx *sql.Tx, column, value string, icon *string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE categories SET icon = ? WHERE `+column+` = ?`),
		nullString(icon), value)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Restore returns every stored record. Lists are never nil.
func (s *Store) Restore(ctx context.Context) (*models.RestoreResponse, error) {
	resp := &models.RestoreResponse{}

	var err error
	if resp.Transactions, err = s.loadTransactions(ctx); err != nil {
		return nil, err
	}
	if resp.Budgets, err = s.loadBudgets(ctx); err != nil {
		return nil, err
	}
	if resp.Categories, err = s.loadCategories(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Store) loadTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, category, type, amount, description, created_at, updated_at, synced
		FROM transactions
		ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var (
			t           models.Transaction
			amount      decimal.Decimal
			description sql.NullString
			synced      sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Date, &t.Category, &t.Type, &amount,
			&description, &t.CreatedAt, &t.UpdatedAt, &synced); err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		t.Amount = &amount
		t.Description = description.String
		flag := 1
		if synced.Valid {
			flag = int(synced.Int64)
		}
		t.Synced = &flag
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading transactions: %w", err)
	}
	return txns, nil
}

func (s *Store) loadBudgets(ctx context.Context) ([]models.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, monthly_limit, created_at, updated_at
		FROM budgets
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying budgets: %w", err)
	}
	defer rows.Close()

	budgets := []models.Budget{}
	for rows.Next() {
		var (
			b     models.Budget
			limit decimal.Decimal
		)
		if err := rows.Scan(&b.ID, &b.Category, &limit, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning budget: %w", err)
		}
		b.MonthlyLimit = &limit
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading budgets: %w", err)
	}
	return budgets, nil
}

func (s *Store) loadCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, icon, created_at
		FROM categories
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var (
			c    models.Category
			icon sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &icon, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		if icon.Valid {
			c.Icon = &icon.String
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading categories: %w", err)
	}
	return categories, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// cents formats a money value for a DECIMAL(10,2) column. Validation bounds
// the exponent before values get here.
func cents(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}

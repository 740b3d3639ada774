package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables when they do not exist yet. The statements
// are idempotent so running it on every startup is safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS inventory_items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			quantity INT NOT NULL DEFAULT 0,
			cost_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			selling_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			items JSONB NOT NULL,
			subtotal DOUBLE PRECISION NOT NULL,
			tax_rate DOUBLE PRECISION NOT NULL,
			tax DOUBLE PRECISION NOT NULL,
			discount_amount DOUBLE PRECISION NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			total_cost_price DOUBLE PRECISION NOT NULL,
			profit DOUBLE PRECISION NOT NULL,
			invoice_date TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS returns (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			items JSONB NOT NULL,
			total_amount DOUBLE PRECISION NOT NULL,
			return_date TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activities (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, code, quantity, cost_price, selling_price
		FROM inventory_items
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Code, &item.Quantity, &item.CostPrice, &item.SellingPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, code, quantity, cost_price, selling_price
		FROM inventory_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Code, &item.Quantity, &item.CostPrice, &item.SellingPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, name, code, quantity, cost_price, selling_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, item.ID, item.Name, item.Code, item.Quantity, item.CostPrice, item.SellingPrice)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate item id", store.ErrInvalidInput)
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET name = $2, code = $3, quantity = $4, cost_price = $5, selling_price = $6, updated_at = now()
		WHERE id = $1
	`, item.ID, item.Name, item.Code, item.Quantity, item.CostPrice, item.SellingPrice)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := s.GetInventoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, phone FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `SELECT id, name, phone FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, created_at) VALUES ($1,$2,$3,now())
	`, customer.ID, customer.Name, customer.Phone)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate customer id", store.ErrInvalidInput)
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name = $2, phone = $3 WHERE id = $1
	`, customer.ID, customer.Name, customer.Phone)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, customer_name, items, subtotal, tax_rate, tax,
		       discount_amount, total, total_cost_price, profit, invoice_date
		FROM invoices
		ORDER BY invoice_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 64)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_name, items, subtotal, tax_rate, tax,
		       discount_amount, total, total_cost_price, profit, invoice_date
		FROM invoices
		WHERE id = $1
	`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := decrementStock(ctx, tx, invoice.Items, nil); err != nil {
		return nil, err
	}
	if err := insertInvoice(ctx, tx, invoice); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	prev, err := lockInvoice(ctx, tx, invoice.ID)
	if err != nil {
		return nil, err
	}

	released := make(map[string]int, len(prev.Items))
	for _, line := range prev.Items {
		released[line.ItemID] += line.Quantity
	}
	// decrementStock nets released quantities for items that stay on the
	// invoice; items dropped from the new line set are restored here.
	if err := decrementStock(ctx, tx, invoice.Items, released); err != nil {
		return nil, err
	}
	kept := make(map[string]bool, len(invoice.Items))
	for _, line := range invoice.Items {
		kept[line.ItemID] = true
	}
	for id, qty := range released {
		if kept[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_items SET quantity = quantity + $2, updated_at = now() WHERE id = $1
		`, id, qty); err != nil {
			return nil, err
		}
	}

	rawItems, err := json.Marshal(invoice.Items)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET customer_id = $2, customer_name = $3, items = $4, subtotal = $5, tax_rate = $6,
		    tax = $7, discount_amount = $8, total = $9, total_cost_price = $10, profit = $11
		WHERE id = $1
	`, invoice.ID, invoice.CustomerID, invoice.CustomerName, rawItems, invoice.Subtotal,
		invoice.TaxRate, invoice.Tax, invoice.DiscountAmount, invoice.Total,
		invoice.TotalCostPrice, invoice.Profit); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	invoice, err := lockInvoice(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	for _, line := range invoice.Items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_items SET quantity = quantity + $2, updated_at = now() WHERE id = $1
		`, line.ItemID, line.Quantity); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Store) ApplyReturn(ctx context.Context, invoice domain.Invoice, record domain.ReturnRecord) (*domain.ReturnRecord, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockInvoice(ctx, tx, invoice.ID)
	if err != nil {
		return nil, err
	}
	if err := store.CheckReturnBasis(*current, invoice, record); err != nil {
		return nil, err
	}
	for _, line := range record.Items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_items SET quantity = quantity + $2, updated_at = now() WHERE id = $1
		`, line.ItemID, line.Quantity); err != nil {
			return nil, err
		}
	}

	rawItems, err := json.Marshal(invoice.Items)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET items = $2, subtotal = $3, tax = $4, total = $5, total_cost_price = $6, profit = $7
		WHERE id = $1
	`, invoice.ID, rawItems, invoice.Subtotal, invoice.Tax, invoice.Total,
		invoice.TotalCostPrice, invoice.Profit); err != nil {
		return nil, err
	}

	rawReturn, err := json.Marshal(record.Items)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO returns (id, invoice_id, customer_id, customer_name, items, total_amount, return_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, record.ID, record.InvoiceID, record.CustomerID, record.CustomerName, rawReturn,
		record.TotalAmount, record.ReturnDate); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) ListReturns(ctx context.Context) ([]domain.ReturnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, customer_id, customer_name, items, total_amount, return_date
		FROM returns
		ORDER BY return_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ReturnRecord, 0, 32)
	for rows.Next() {
		var rec domain.ReturnRecord
		var rawItems []byte
		if err := rows.Scan(&rec.ID, &rec.InvoiceID, &rec.CustomerID, &rec.CustomerName, &rawItems, &rec.TotalAmount, &rec.ReturnDate); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawItems, &rec.Items); err != nil {
			return nil, err
		}
		rec.Type = domain.ReturnRecordType
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) AppendActivity(ctx context.Context, activity domain.Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (type, message, created_at) VALUES ($1,$2,$3)
	`, activity.Type, activity.Message, activity.Timestamp)
	return err
}

func (s *Store) ListActivities(ctx context.Context, limit int) ([]domain.Activity, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, message, created_at
		FROM activities
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0, limit)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.Type, &a.Message, &a.Timestamp); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *Store) GetDashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM inventory_items),
			(SELECT count(*) FROM customers),
			(SELECT count(*) FROM invoices)
	`).Scan(&stats.TotalItems, &stats.TotalCustomers, &stats.TotalInvoices)
	return stats, err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("user %q already exists", user.Username)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var rawItems []byte
	if err := row.Scan(&inv.ID, &inv.CustomerID, &inv.CustomerName, &rawItems, &inv.Subtotal,
		&inv.TaxRate, &inv.Tax, &inv.DiscountAmount, &inv.Total, &inv.TotalCostPrice,
		&inv.Profit, &inv.Date); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawItems, &inv.Items); err != nil {
		return nil, err
	}
	return &inv, nil
}

func lockInvoice(ctx context.Context, tx *sql.Tx, id string) (*domain.Invoice, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_name, items, subtotal, tax_rate, tax,
		       discount_amount, total, total_cost_price, profit, invoice_date
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

// decrementStock locks every referenced item row, verifies availability
// (counting quantities an earlier invoice revision would release) and applies
// the decrement. Runs inside the caller's transaction.
func decrementStock(ctx context.Context, tx *sql.Tx, lines []domain.InvoiceLineItem, released map[string]int) error {
	need := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, seen := need[line.ItemID]; !seen {
			order = append(order, line.ItemID)
		}
		need[line.ItemID] += line.Quantity
	}

	for _, id := range order {
		var name string
		var qty int
		err := tx.QueryRowContext(ctx, `
			SELECT name, quantity FROM inventory_items WHERE id = $1 FOR UPDATE
		`, id).Scan(&name, &qty)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		available := qty + released[id]
		if available < need[id] {
			return fmt.Errorf("%w: %s has %d, need %d", store.ErrInsufficientInventory, name, available, need[id])
		}
	}
	for _, id := range order {
		delta := need[id] - released[id]
		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_items SET quantity = quantity - $2, updated_at = now() WHERE id = $1
		`, id, delta); err != nil {
			return err
		}
	}
	return nil
}

func insertInvoice(ctx context.Context, tx *sql.Tx, invoice domain.Invoice) error {
	rawItems, err := json.Marshal(invoice.Items)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, customer_id, customer_name, items, subtotal, tax_rate, tax,
		                      discount_amount, total, total_cost_price, profit, invoice_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, invoice.ID, invoice.CustomerID, invoice.CustomerName, rawItems, invoice.Subtotal,
		invoice.TaxRate, invoice.Tax, invoice.DiscountAmount, invoice.Total,
		invoice.TotalCostPrice, invoice.Profit, invoice.Date)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

package store

import (
	"context"
	"errors"

	"bahikhata/backend/internal/domain"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrMissingCustomer          = errors.New("missing customer")
	ErrEmptyInvoice             = errors.New("invoice has no line items")
	ErrInsufficientInventory    = errors.New("insufficient inventory")
	ErrNoItemsSelected          = errors.New("no items selected for return")
	ErrInvalidPriceRelationship = errors.New("selling price below cost price")
	ErrInvalidInput             = errors.New("invalid input")
	ErrConflict                 = errors.New("invoice changed since it was read")
)

// Repository is the persistence contract for every entity. Implementations
// must make the invoice mutations (create/update/delete/return) atomic with
// their inventory side effects: either both become visible or neither does.
type Repository interface {
	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) (*domain.Customer, error)

	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	// CreateInvoice decrements stock for every line and persists the invoice
	// in one unit. Fails with ErrInsufficientInventory before any mutation.
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	// UpdateInvoice restores the stored invoice's remaining quantities to
	// stock, then validates and applies the replacement line set, atomically.
	UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	// DeleteInvoice removes the invoice and restores its remaining
	// quantities to stock.
	DeleteInvoice(ctx context.Context, id string) (*domain.Invoice, error)

	// ApplyReturn replaces the parent invoice with its post-return state,
	// increments stock for every returned line and appends the record. The
	// stored invoice is checked against the snapshot the return was computed
	// from (CheckReturnBasis) under the same lock; a concurrent mutation
	// fails the whole operation with ErrConflict.
	ApplyReturn(ctx context.Context, invoice domain.Invoice, record domain.ReturnRecord) (*domain.ReturnRecord, error)
	ListReturns(ctx context.Context) ([]domain.ReturnRecord, error)

	AppendActivity(ctx context.Context, activity domain.Activity) error
	ListActivities(ctx context.Context, limit int) ([]domain.Activity, error)

	GetDashboardStats(ctx context.Context) (domain.DashboardStats, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// CheckReturnBasis verifies that the stored invoice still matches the
// snapshot a return was computed from: every current line quantity must
// equal the post-return quantity plus the returned quantity. Implementations
// call this under their invoice lock so two returns can never both restock
// the same sold units.
func CheckReturnBasis(current domain.Invoice, updated domain.Invoice, record domain.ReturnRecord) error {
	returned := make(map[string]int, len(record.Items))
	for _, line := range record.Items {
		returned[line.ItemID] += line.Quantity
	}
	updatedQty := make(map[string]int, len(updated.Items))
	for _, line := range updated.Items {
		updatedQty[line.ItemID] += line.Quantity
	}
	currentQty := make(map[string]int, len(current.Items))
	for _, line := range current.Items {
		currentQty[line.ItemID] += line.Quantity
	}

	for id, qty := range currentQty {
		if qty != updatedQty[id]+returned[id] {
			return ErrConflict
		}
	}
	for id := range updatedQty {
		if _, ok := currentQty[id]; !ok {
			return ErrConflict
		}
	}
	for id := range returned {
		if _, ok := currentQty[id]; !ok {
			return ErrConflict
		}
	}
	return nil
}

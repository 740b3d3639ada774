// Package memory provides an in-process Repository used for local
// development and by the service and handler tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

type Store struct {
	mu         sync.RWMutex
	inventory  map[string]domain.InventoryItem
	customers  map[string]domain.Customer
	invoices   map[string]domain.Invoice
	returns    []domain.ReturnRecord
	activities []domain.Activity
	users      map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		inventory: make(map[string]domain.InventoryItem),
		customers: make(map[string]domain.Customer),
		invoices:  make(map[string]domain.Invoice),
		users:     make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store pre-filled with a small catalog, two customers
// and the bootstrap user accounts, handy for demos and manual testing.
func NewSeeded() *Store {
	s := New()
	now := time.Now()

	for _, item := range []domain.InventoryItem{
		{ID: xid.New("itm"), Name: "Notebook A5", Code: "NB-A5", Quantity: 40, CostPrice: 25, SellingPrice: 40},
		{ID: xid.New("itm"), Name: "Ballpoint Pen", Code: "PEN-01", Quantity: 120, CostPrice: 5, SellingPrice: 10},
		{ID: xid.New("itm"), Name: "Stapler", Code: "STP-22", Quantity: 15, CostPrice: 90, SellingPrice: 150},
	} {
		s.inventory[item.ID] = item
	}
	for _, c := range []domain.Customer{
		{ID: xid.New("cus"), Name: "Walk-in", Phone: ""},
		{ID: xid.New("cus"), Name: "Asha Traders", Phone: "555-012-3456"},
	} {
		s.customers[c.ID] = c
	}

	seedUser := func(username, envKey, fallback, role string) {
		password := os.Getenv(envKey)
		if password == "" {
			password = fallback
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return
		}
		s.users[username] = domain.UserAccount{
			Username:  username,
			Password:  string(hash),
			Role:      role,
			Active:    true,
			CreatedAt: now,
		}
	}
	seedUser("admin", "SEED_ADMIN_PASSWORD", "admin12345", "admin")
	seedUser("clerk", "SEED_CLERK_PASSWORD", "clerk12345", "clerk")

	return s
}

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.inventory))
	for _, item := range s.inventory {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventory[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inventory[item.ID] = item
	return &item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inventory[item.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.inventory[item.ID] = item
	return &item, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventory[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.inventory, id)
	return &item, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customer.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.customers, id)
	return &c, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		invoices = append(invoices, copyInvoice(inv))
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].Date.After(invoices[j].Date) })
	return invoices, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyInvoice(inv)
	return &out, nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkStockLocked(invoice.Items, nil); err != nil {
		return nil, err
	}
	for _, line := range invoice.Items {
		item := s.inventory[line.ItemID]
		item.Quantity -= line.Quantity
		s.inventory[item.ID] = item
	}
	s.invoices[invoice.ID] = copyInvoice(invoice)
	return &invoice, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.invoices[invoice.ID]
	if !ok {
		return nil, store.ErrNotFound
	}

	// Quantities held by the previous revision count as available stock for
	// the replacement line set. Validate before touching anything.
	released := make(map[string]int, len(prev.Items))
	for _, line := range prev.Items {
		released[line.ItemID] += line.Quantity
	}
	if err := s.checkStockLocked(invoice.Items, released); err != nil {
		return nil, err
	}

	for _, line := range prev.Items {
		if item, ok := s.inventory[line.ItemID]; ok {
			item.Quantity += line.Quantity
			s.inventory[item.ID] = item
		}
	}
	for _, line := range invoice.Items {
		item := s.inventory[line.ItemID]
		item.Quantity -= line.Quantity
		s.inventory[item.ID] = item
	}
	s.invoices[invoice.ID] = copyInvoice(invoice)
	return &invoice, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, line := range inv.Items {
		if item, ok := s.inventory[line.ItemID]; ok {
			item.Quantity += line.Quantity
			s.inventory[item.ID] = item
		}
	}
	delete(s.invoices, id)
	out := copyInvoice(inv)
	return &out, nil
}

func (s *Store) ApplyReturn(ctx context.Context, invoice domain.Invoice, record domain.ReturnRecord) (*domain.ReturnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.invoices[invoice.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := store.CheckReturnBasis(current, invoice, record); err != nil {
		return nil, err
	}
	for _, line := range record.Items {
		if item, ok := s.inventory[line.ItemID]; ok {
			item.Quantity += line.Quantity
			s.inventory[item.ID] = item
		}
	}
	s.invoices[invoice.ID] = copyInvoice(invoice)
	s.returns = append(s.returns, record)
	return &record, nil
}

func (s *Store) ListReturns(ctx context.Context) ([]domain.ReturnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ReturnRecord, len(s.returns))
	copy(out, s.returns)
	sort.Slice(out, func(i, j int) bool { return out[i].ReturnDate.After(out[j].ReturnDate) })
	return out, nil
}

func (s *Store) AppendActivity(ctx context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activities = append(s.activities, activity)
	return nil
}

func (s *Store) ListActivities(ctx context.Context, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Activity, len(s.activities))
	copy(out, s.activities)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetDashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.DashboardStats{
		TotalItems:     len(s.inventory),
		TotalCustomers: len(s.customers),
		TotalInvoices:  len(s.invoices),
	}, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("user %q already exists", user.Username)
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[username] = u
	return nil
}

// checkStockLocked validates that every requested line can be satisfied.
// released holds quantities an earlier invoice revision would give back.
// Caller must hold the write lock.
func (s *Store) checkStockLocked(lines []domain.InvoiceLineItem, released map[string]int) error {
	need := make(map[string]int, len(lines))
	for _, line := range lines {
		need[line.ItemID] += line.Quantity
	}
	for id, qty := range need {
		item, ok := s.inventory[id]
		if !ok {
			return store.ErrNotFound
		}
		available := item.Quantity + released[id]
		if available < qty {
			return fmt.Errorf("%w: %s has %d, need %d", store.ErrInsufficientInventory, item.Name, available, qty)
		}
	}
	return nil
}

func copyInvoice(inv domain.Invoice) domain.Invoice {
	out := inv
	out.Items = make([]domain.InvoiceLineItem, len(inv.Items))
	copy(out.Items, inv.Items)
	return out
}

// Package service holds the business rules: inventory and customer CRUD,
// the invoice engine, the return processor and the activity feed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"bahikhata/backend/internal/cache"
	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

type contextKey string

const actorKey contextKey = "actor"

// WithActor attaches the authenticated user to the context so activity
// messages can name who did what.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{Username: "system", Role: "system"}
}

type Service struct {
	repo  store.Repository
	cache cache.StatsCache
}

func New(repo store.Repository, statsCache cache.StatsCache) *Service {
	return &Service{repo: repo, cache: statsCache}
}

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// --- Inventory ---

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.repo.ListInventory(ctx)
}

func (s *Service) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return s.repo.GetInventoryItem(ctx, id)
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryItemCreateRequest) (*domain.InventoryItem, error) {
	item := domain.InventoryItem{
		ID:           xid.New("itm"),
		Name:         strings.TrimSpace(req.Name),
		Code:         strings.TrimSpace(req.Code),
		Quantity:     req.Quantity,
		CostPrice:    domain.Round2(req.CostPrice),
		SellingPrice: domain.Round2(req.SellingPrice),
	}
	if err := validateInventoryItem(item); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateInventoryItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}
	s.logActivity(ctx, domain.ActivityInventory, "added item %q (qty %d)", created.Name, created.Quantity)
	return created, nil
}

func (s *Service) UpdateInventoryItem(ctx context.Context, id string, req domain.InventoryItemUpdateRequest) (*domain.InventoryItem, error) {
	current, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return nil, err
	}

	item := *current
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		item.Code = strings.TrimSpace(*req.Code)
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
		if item.Quantity < 0 {
			item.Quantity = 0
		}
	}
	if req.CostPrice != nil {
		item.CostPrice = domain.Round2(*req.CostPrice)
	}
	if req.SellingPrice != nil {
		item.SellingPrice = domain.Round2(*req.SellingPrice)
	}
	if err := validateInventoryItem(item); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateInventoryItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("update inventory item: %w", err)
	}
	s.logActivity(ctx, domain.ActivityInventory, "updated item %q", updated.Name)
	return updated, nil
}

func (s *Service) DeleteInventoryItem(ctx context.Context, id string) error {
	item, err := s.repo.DeleteInventoryItem(ctx, id)
	if err != nil {
		return err
	}
	s.logActivity(ctx, domain.ActivityInventory, "removed item %q", item.Name)
	return nil
}

func validateInventoryItem(item domain.InventoryItem) error {
	if item.Name == "" {
		return fmt.Errorf("%w: item name is required", store.ErrInvalidInput)
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", store.ErrInvalidInput)
	}
	if item.CostPrice < 0 || item.SellingPrice < 0 {
		return fmt.Errorf("%w: prices must not be negative", store.ErrInvalidInput)
	}
	if item.SellingPrice < item.CostPrice {
		return fmt.Errorf("%w: %q sells at %.2f but costs %.2f", store.ErrInvalidPriceRelationship, item.Name, item.SellingPrice, item.CostPrice)
	}
	return nil
}

// --- Customers ---

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	customer := domain.Customer{
		ID:    xid.New("cus"),
		Name:  strings.TrimSpace(req.Name),
		Phone: phone,
	}
	if customer.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.logActivity(ctx, domain.ActivityCustomer, "added customer %q", created.Name)
	return created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (*domain.Customer, error) {
	current, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	customer := *current
	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
		if customer.Name == "" {
			return nil, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
		}
	}
	if req.Phone != nil {
		phone, err := normalizePhone(*req.Phone)
		if err != nil {
			return nil, err
		}
		customer.Phone = phone
	}

	updated, err := s.repo.UpdateCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	s.logActivity(ctx, domain.ActivityCustomer, "updated customer %q", updated.Name)
	return updated, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	customer, err := s.repo.DeleteCustomer(ctx, id)
	if err != nil {
		return err
	}
	s.logActivity(ctx, domain.ActivityCustomer, "removed customer %q", customer.Name)
	return nil
}

// normalizePhone accepts exactly ten digits (separators stripped) and stores
// them as XXX-XXX-XXXX. Empty input is allowed, phone is optional.
func normalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, trimmed)
	if !phonePattern.MatchString(digits) {
		return "", fmt.Errorf("%w: phone must contain exactly 10 digits", store.ErrInvalidInput)
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:], nil
}

// --- Invoices ---

func (s *Service) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (*domain.Invoice, error) {
	invoice, err := s.buildInvoice(ctx, req)
	if err != nil {
		return nil, err
	}
	invoice.ID = xid.New("inv")
	invoice.Date = time.Now()

	created, err := s.repo.CreateInvoice(ctx, *invoice)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	s.logActivity(ctx, domain.ActivityInvoice, "created invoice %s for %q (total %.2f)", created.ID, created.CustomerName, created.Total)
	return created, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, id string, req domain.InvoiceCreateRequest) (*domain.Invoice, error) {
	current, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	invoice, err := s.buildInvoice(ctx, req)
	if err != nil {
		return nil, err
	}
	invoice.ID = current.ID
	invoice.Date = current.Date

	updated, err := s.repo.UpdateInvoice(ctx, *invoice)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	s.logActivity(ctx, domain.ActivityInvoice, "updated invoice %s (total %.2f)", updated.ID, updated.Total)
	return updated, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	invoice, err := s.repo.DeleteInvoice(ctx, id)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	s.logActivity(ctx, domain.ActivityInvoice, "deleted invoice %s for %q", invoice.ID, invoice.CustomerName)
	return nil
}

// buildInvoice validates the request and computes every derived field. It
// does not touch stock; the repository applies the decrement atomically with
// the insert so a failed availability check leaves nothing behind.
func (s *Service) buildInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (*domain.Invoice, error) {
	customer, err := s.repo.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %q", store.ErrMissingCustomer, req.CustomerID)
		}
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, store.ErrEmptyInvoice
	}
	if req.TaxRate < 0 {
		return nil, fmt.Errorf("%w: tax rate must not be negative", store.ErrInvalidInput)
	}
	if req.DiscountAmount < 0 {
		return nil, fmt.Errorf("%w: discount must not be negative", store.ErrInvalidInput)
	}

	invoice := domain.Invoice{
		CustomerID:     customer.ID,
		CustomerName:   customer.Name,
		TaxRate:        req.TaxRate,
		DiscountAmount: domain.Round2(req.DiscountAmount),
		Items:          make([]domain.InvoiceLineItem, 0, len(req.Lines)),
	}
	lineIndex := make(map[string]int, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: line quantity must be at least 1", store.ErrInvalidInput)
		}
		if idx, ok := lineIndex[line.ItemID]; ok {
			// Returns are keyed by item ID, so an invoice carries at most one
			// line per item; repeated requests fold into the first line and
			// keep its price.
			merged := &invoice.Items[idx]
			merged.Quantity += line.Quantity
			merged.Total = domain.Round2(float64(merged.Quantity) * merged.Price)
			continue
		}
		item, err := s.repo.GetInventoryItem(ctx, line.ItemID)
		if err != nil {
			return nil, fmt.Errorf("line item %q: %w", line.ItemID, err)
		}
		price := item.SellingPrice
		if line.Price != nil {
			if *line.Price < 0 {
				return nil, fmt.Errorf("%w: line price must not be negative", store.ErrInvalidInput)
			}
			price = domain.Round2(*line.Price)
		}
		lineIndex[line.ItemID] = len(invoice.Items)
		invoice.Items = append(invoice.Items, domain.InvoiceLineItem{
			ItemID:    item.ID,
			Name:      item.Name,
			Code:      item.Code,
			Price:     price,
			CostPrice: item.CostPrice,
			Quantity:  line.Quantity,
			Total:     domain.Round2(price * float64(line.Quantity)),
		})
	}

	for _, line := range invoice.Items {
		invoice.Subtotal += line.Total
		invoice.TotalCostPrice += line.CostPrice * float64(line.Quantity)
	}
	invoice.Subtotal = domain.Round2(invoice.Subtotal)
	invoice.TotalCostPrice = domain.Round2(invoice.TotalCostPrice)

	discounted := invoice.Subtotal - invoice.DiscountAmount
	invoice.Tax = domain.Round2(discounted * invoice.TaxRate / 100)
	invoice.Total = domain.Round2(discounted + invoice.Tax)
	invoice.Profit = domain.Round2(invoice.Total - invoice.TotalCostPrice)
	return &invoice, nil
}

// --- Returns ---

// ProcessReturn reduces the invoice's lines by the requested quantities,
// restores stock and appends a write-once return record. The full original
// discount keeps applying against the shrunken subtotal; that mirrors how
// the shop has always settled returns and is deliberate.
func (s *Service) ProcessReturn(ctx context.Context, invoiceID string, req domain.ReturnRequest) (*domain.ReturnRecord, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	selected := 0
	for itemID, qty := range req.Quantities {
		if qty < 0 {
			return nil, fmt.Errorf("%w: return quantity must not be negative", store.ErrInvalidInput)
		}
		if qty == 0 {
			continue
		}
		line := findLine(invoice.Items, itemID)
		if line == nil {
			return nil, fmt.Errorf("%w: item %q is not on invoice %s", store.ErrInvalidInput, itemID, invoiceID)
		}
		if qty > line.Quantity {
			return nil, fmt.Errorf("%w: item %q has %d left on the invoice, cannot return %d", store.ErrInvalidInput, itemID, line.Quantity, qty)
		}
		selected++
	}
	if selected == 0 {
		return nil, store.ErrNoItemsSelected
	}

	record := domain.ReturnRecord{
		ID:           xid.New("ret"),
		InvoiceID:    invoice.ID,
		CustomerID:   invoice.CustomerID,
		CustomerName: invoice.CustomerName,
		ReturnDate:   time.Now(),
		Type:         domain.ReturnRecordType,
	}

	var totalReturnAmount, totalReturnProfit, totalReturnCost float64
	remaining := make([]domain.InvoiceLineItem, 0, len(invoice.Items))
	for _, line := range invoice.Items {
		qty := req.Quantities[line.ItemID]
		if qty > 0 {
			amount := domain.Round2(float64(qty) * line.Price)
			cost := domain.Round2(float64(qty) * line.CostPrice)
			totalReturnAmount += amount
			totalReturnCost += cost
			totalReturnProfit += amount - cost
			record.Items = append(record.Items, domain.ReturnLineItem{
				ItemID:   line.ItemID,
				Name:     line.Name,
				Quantity: qty,
				Price:    line.Price,
				Total:    amount,
			})
			line.Quantity -= qty
			line.Total = domain.Round2(float64(line.Quantity) * line.Price)
		}
		if line.Quantity > 0 {
			remaining = append(remaining, line)
		}
	}
	record.TotalAmount = domain.Round2(totalReturnAmount)

	updated := *invoice
	updated.Items = remaining
	updated.Subtotal = domain.Round2(invoice.Subtotal - totalReturnAmount)
	updated.TotalCostPrice = domain.Round2(invoice.TotalCostPrice - totalReturnCost)
	updated.Profit = domain.Round2(invoice.Profit - totalReturnProfit)
	discounted := updated.Subtotal - updated.DiscountAmount
	updated.Tax = domain.Round2(discounted * updated.TaxRate / 100)
	updated.Total = domain.Round2(discounted + updated.Tax)

	stored, err := s.repo.ApplyReturn(ctx, updated, record)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	s.logActivity(ctx, domain.ActivityReturn, "processed return %s on invoice %s (amount %.2f)", stored.ID, invoice.ID, stored.TotalAmount)
	return stored, nil
}

func (s *Service) ListReturns(ctx context.Context) ([]domain.ReturnRecord, error) {
	return s.repo.ListReturns(ctx)
}

func findLine(items []domain.InvoiceLineItem, itemID string) *domain.InvoiceLineItem {
	for i := range items {
		if items[i].ItemID == itemID {
			return &items[i]
		}
	}
	return nil
}

// --- Activities ---

func (s *Service) RecentActivities(ctx context.Context, limit int) ([]domain.Activity, error) {
	return s.repo.ListActivities(ctx, limit)
}

// logActivity is fire-and-forget: a failed append is logged, never surfaced.
func (s *Service) logActivity(ctx context.Context, activityType, format string, args ...any) {
	actor := ActorFromContext(ctx)
	activity := domain.Activity{
		Type:      activityType,
		Message:   fmt.Sprintf("%s %s", actor.Username, fmt.Sprintf(format, args...)),
		Timestamp: time.Now(),
	}
	if err := s.repo.AppendActivity(ctx, activity); err != nil {
		log.Printf("[service] append activity: %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bahikhata/backend/internal/cache"
	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	return New(repo, cache.Noop{}), repo
}

func seedItem(t *testing.T, repo *memory.Store, name string, qty int, cost, sell float64) domain.InventoryItem {
	t.Helper()
	item, err := repo.CreateInventoryItem(context.Background(), domain.InventoryItem{
		ID: "itm-" + name, Name: name, Quantity: qty, CostPrice: cost, SellingPrice: sell,
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return *item
}

func seedCustomer(t *testing.T, repo *memory.Store, name string) domain.Customer {
	t.Helper()
	c, err := repo.CreateCustomer(context.Background(), domain.Customer{ID: "cus-" + name, Name: name})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return *c
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCreateInvoiceComputesTotalsWithoutTax(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if !almostEqual(inv.Subtotal, 240) {
		t.Errorf("subtotal = %v, want 240", inv.Subtotal)
	}
	if !almostEqual(inv.TotalCostPrice, 150) {
		t.Errorf("total cost = %v, want 150", inv.TotalCostPrice)
	}
	if !almostEqual(inv.Profit, 90) {
		t.Errorf("profit = %v, want 90", inv.Profit)
	}
	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 7 {
		t.Errorf("stock = %d, want 7", got.Quantity)
	}
}

func TestCreateInvoiceAppliesTaxAfterDiscount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID:     customer.ID,
		Lines:          []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 3}},
		TaxRate:        10,
		DiscountAmount: 40,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if !almostEqual(inv.Tax, 20) {
		t.Errorf("tax = %v, want 20", inv.Tax)
	}
	if !almostEqual(inv.Total, 220) {
		t.Errorf("total = %v, want 220", inv.Total)
	}
	if !almostEqual(inv.Profit, 70) {
		t.Errorf("profit = %v, want 70", inv.Profit)
	}
}

func TestCreateInvoiceTotalsIdentityHolds(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	a := seedItem(t, repo, "a", 30, 12.35, 19.99)
	b := seedItem(t, repo, "b", 30, 3.5, 7.25)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID:     customer.ID,
		Lines:          []domain.InvoiceLineInput{{ItemID: a.ID, Quantity: 7}, {ItemID: b.ID, Quantity: 3}},
		TaxRate:        7.5,
		DiscountAmount: 12.34,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	wantTax := domain.Round2((inv.Subtotal - inv.DiscountAmount) * inv.TaxRate / 100)
	if !almostEqual(inv.Tax, wantTax) {
		t.Errorf("tax = %v, want %v", inv.Tax, wantTax)
	}
	wantTotal := domain.Round2(inv.Subtotal - inv.DiscountAmount + inv.Tax)
	if !almostEqual(inv.Total, wantTotal) {
		t.Errorf("total = %v, want %v", inv.Total, wantTotal)
	}
	if !almostEqual(inv.Profit, domain.Round2(inv.Total-inv.TotalCostPrice)) {
		t.Errorf("profit identity broken: profit=%v total=%v cost=%v", inv.Profit, inv.Total, inv.TotalCostPrice)
	}
}

func TestCreateInvoiceRejectsOversellWithoutMutation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	_, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 11}},
	})
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("err = %v, want ErrInsufficientInventory", err)
	}

	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 10 {
		t.Errorf("stock = %d, want untouched 10", got.Quantity)
	}
	invoices, _ := repo.ListInvoices(ctx)
	if len(invoices) != 0 {
		t.Errorf("expected no invoice persisted, got %d", len(invoices))
	}
}

func TestCreateInvoiceValidatesAcrossAllLinesBeforeMutating(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	ok := seedItem(t, repo, "plenty", 100, 1, 2)
	scarce := seedItem(t, repo, "scarce", 1, 1, 2)
	customer := seedCustomer(t, repo, "asha")

	_, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines: []domain.InvoiceLineInput{
			{ItemID: ok.ID, Quantity: 5},
			{ItemID: scarce.ID, Quantity: 2},
		},
	})
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("err = %v, want ErrInsufficientInventory", err)
	}

	got, _ := repo.GetInventoryItem(ctx, ok.ID)
	if got.Quantity != 100 {
		t.Errorf("first line stock = %d, want untouched 100", got.Quantity)
	}
}

func TestCreateInvoiceErrorKinds(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	_, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: "cus-ghost",
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrMissingCustomer) {
		t.Errorf("unknown customer: err = %v, want ErrMissingCustomer", err)
	}

	_, err = svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{CustomerID: customer.ID})
	if !errors.Is(err, store.ErrEmptyInvoice) {
		t.Errorf("no lines: err = %v, want ErrEmptyInvoice", err)
	}
}

func TestCreateInvoiceHonorsPriceOverride(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	override := 75.5
	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 2, Price: &override}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if !almostEqual(inv.Items[0].Price, 75.5) || !almostEqual(inv.Subtotal, 151) {
		t.Errorf("price=%v subtotal=%v, want 75.5 / 151", inv.Items[0].Price, inv.Subtotal)
	}
}

func TestCreateInvoiceMergesDuplicateLines(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines: []domain.InvoiceLineInput{
			{ItemID: item.ID, Quantity: 2},
			{ItemID: item.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if len(inv.Items) != 1 || inv.Items[0].Quantity != 5 {
		t.Fatalf("lines = %+v, want a single merged line with qty 5", inv.Items)
	}
	if !almostEqual(inv.Subtotal, 400) {
		t.Errorf("subtotal = %v, want 400", inv.Subtotal)
	}
	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 5 {
		t.Errorf("stock = %d, want 5", got.Quantity)
	}

	// A return of one unit against the merged line must restock exactly one
	// unit and refund exactly one line price.
	record, err := svc.ProcessReturn(ctx, inv.ID, domain.ReturnRequest{
		Quantities: map[string]int{item.ID: 1},
	})
	if err != nil {
		t.Fatalf("process return: %v", err)
	}
	if !almostEqual(record.TotalAmount, 80) {
		t.Errorf("return amount = %v, want 80", record.TotalAmount)
	}
	got, _ = repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 6 {
		t.Errorf("stock = %d, want 6 after single-unit return", got.Quantity)
	}
	after, _ := svc.GetInvoice(ctx, inv.ID)
	if len(after.Items) != 1 || after.Items[0].Quantity != 4 {
		t.Errorf("invoice lines = %+v, want single line with qty 4", after.Items)
	}
}

func TestConcurrentReturnsRestockAtMostOnce(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ProcessReturn(ctx, inv.ID, domain.ReturnRequest{
				Quantities: map[string]int{item.ID: 3},
			}); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful returns = %d, want exactly 1", successes)
	}
	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 10 {
		t.Errorf("stock = %d, want 10: the sold units must be restocked once", got.Quantity)
	}
}

func TestApplyReturnRejectsStaleSnapshot(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	updated := *inv
	line := inv.Items[0]
	line.Quantity = 2
	line.Total = 160
	updated.Items = []domain.InvoiceLineItem{line}
	updated.Subtotal = 160
	record := domain.ReturnRecord{
		ID:           "ret-stale-check",
		InvoiceID:    inv.ID,
		CustomerID:   inv.CustomerID,
		CustomerName: inv.CustomerName,
		Items: []domain.ReturnLineItem{
			{ItemID: item.ID, Name: line.Name, Quantity: 1, Price: 80, Total: 80},
		},
		TotalAmount: 80,
		ReturnDate:  time.Now(),
		Type:        domain.ReturnRecordType,
	}

	if _, err := repo.ApplyReturn(ctx, updated, record); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// Replaying the same computation is based on a snapshot the first apply
	// already invalidated.
	if _, err := repo.ApplyReturn(ctx, updated, record); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second apply: err = %v, want ErrConflict", err)
	}
	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 8 {
		t.Errorf("stock = %d, want 8 after single applied return", got.Quantity)
	}
}

func TestProcessPartialReturn(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID:     customer.ID,
		Lines:          []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 3}},
		TaxRate:        10,
		DiscountAmount: 40,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	record, err := svc.ProcessReturn(ctx, inv.ID, domain.ReturnRequest{
		Quantities: map[string]int{item.ID: 1},
	})
	if err != nil {
		t.Fatalf("process return: %v", err)
	}
	if !almostEqual(record.TotalAmount, 80) {
		t.Errorf("return amount = %v, want 80", record.TotalAmount)
	}

	after, err := svc.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if !almostEqual(after.Subtotal, 160) {
		t.Errorf("subtotal = %v, want 160", after.Subtotal)
	}
	if !almostEqual(after.Profit, 40) {
		t.Errorf("profit = %v, want 40", after.Profit)
	}
	if !almostEqual(after.Tax, 12) {
		t.Errorf("tax = %v, want 12", after.Tax)
	}
	if !almostEqual(after.Total, 132) {
		t.Errorf("total = %v, want 132", after.Total)
	}
	if len(after.Items) != 1 || after.Items[0].Quantity != 2 {
		t.Errorf("line quantity = %+v, want single line with qty 2", after.Items)
	}

	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 8 {
		t.Errorf("stock = %d, want 8 after restock", got.Quantity)
	}
}

func TestProcessFullReturnRestoresEverything(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	a := seedItem(t, repo, "a", 10, 50, 80)
	b := seedItem(t, repo, "b", 5, 10, 30)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: a.ID, Quantity: 3}, {ItemID: b.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	_, err = svc.ProcessReturn(ctx, inv.ID, domain.ReturnRequest{
		Quantities: map[string]int{a.ID: 3, b.ID: 2},
	})
	if err != nil {
		t.Fatalf("process return: %v", err)
	}

	gotA, _ := repo.GetInventoryItem(ctx, a.ID)
	gotB, _ := repo.GetInventoryItem(ctx, b.ID)
	if gotA.Quantity != 10 || gotB.Quantity != 5 {
		t.Errorf("stock = %d/%d, want pre-invoice 10/5", gotA.Quantity, gotB.Quantity)
	}

	after, _ := svc.GetInvoice(ctx, inv.ID)
	if len(after.Items) != 0 {
		t.Errorf("expected empty line collection, got %d lines", len(after.Items))
	}
	if !almostEqual(after.Subtotal, 0) {
		t.Errorf("subtotal = %v, want 0", after.Subtotal)
	}
}

func TestProcessReturnRejectsBadRequests(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	_, err = svc.ProcessReturn(ctx, inv.ID, domain.ReturnRequest{Quantities: map[string]int{item.ID: 0}})
	if !errors.Is(err, store.ErrNoItemsSelected) {
		t.Errorf("all-zero quantities: err = %v, want ErrNoItemsSelected", err)
	}

	_, err = svc.ProcessReturn(ctx, inv.ID, domain.ReturnRequest{Quantities: map[string]int{item.ID: 4}})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("over-return: err = %v, want ErrInvalidInput", err)
	}

	_, err = svc.ProcessReturn(ctx, "inv-ghost", domain.ReturnRequest{Quantities: map[string]int{item.ID: 1}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown invoice: err = %v, want ErrNotFound", err)
	}

	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 7 {
		t.Errorf("stock = %d, want 7 after rejected returns", got.Quantity)
	}
}

func TestUpdateInvoiceRestoresOldQuantitiesFirst(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 8}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	// Only 2 remain on hand, but the 8 held by the invoice are released
	// back before the replacement lines are validated.
	updated, err := svc.UpdateInvoice(ctx, inv.ID, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	if !almostEqual(updated.Subtotal, 400) {
		t.Errorf("subtotal = %v, want 400", updated.Subtotal)
	}
	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 5 {
		t.Errorf("stock = %d, want 5", got.Quantity)
	}
}

func TestUpdateInvoiceFailureLeavesStateUntouched(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	_, err = svc.UpdateInvoice(ctx, inv.ID, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 11}},
	})
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("err = %v, want ErrInsufficientInventory", err)
	}

	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 7 {
		t.Errorf("stock = %d, want unchanged 7", got.Quantity)
	}
	after, _ := svc.GetInvoice(ctx, inv.ID)
	if after.Items[0].Quantity != 3 {
		t.Errorf("invoice line qty = %d, want unchanged 3", after.Items[0].Quantity)
	}
}

func TestDeleteInvoiceRestoresRemainingStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	inv, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := svc.DeleteInvoice(ctx, inv.ID); err != nil {
		t.Fatalf("delete invoice: %v", err)
	}
	got, _ := repo.GetInventoryItem(ctx, item.ID)
	if got.Quantity != 10 {
		t.Errorf("stock = %d, want restored 10", got.Quantity)
	}
	if _, err := svc.GetInvoice(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get deleted invoice: err = %v, want ErrNotFound", err)
	}
}

func TestInventoryPriceRelationshipEnforcedBothWays(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{
		Name: "widget", Quantity: 5, CostPrice: 100, SellingPrice: 90,
	})
	if !errors.Is(err, store.ErrInvalidPriceRelationship) {
		t.Errorf("create below cost: err = %v, want ErrInvalidPriceRelationship", err)
	}

	item := seedItem(t, repo, "widget", 5, 50, 80)
	lowSell := 40.0
	_, err = svc.UpdateInventoryItem(ctx, item.ID, domain.InventoryItemUpdateRequest{SellingPrice: &lowSell})
	if !errors.Is(err, store.ErrInvalidPriceRelationship) {
		t.Errorf("sell below cost: err = %v, want ErrInvalidPriceRelationship", err)
	}

	highCost := 90.0
	_, err = svc.UpdateInventoryItem(ctx, item.ID, domain.InventoryItemUpdateRequest{CostPrice: &highCost})
	if !errors.Is(err, store.ErrInvalidPriceRelationship) {
		t.Errorf("cost above sell: err = %v, want ErrInvalidPriceRelationship", err)
	}
}

func TestCustomerPhoneNormalization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Asha", Phone: "5550123456"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if c.Phone != "555-012-3456" {
		t.Errorf("phone = %q, want 555-012-3456", c.Phone)
	}

	_, err = svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Bad", Phone: "12345"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("short phone: err = %v, want ErrInvalidInput", err)
	}

	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "NoPhone"}); err != nil {
		t.Errorf("phone should be optional, got %v", err)
	}
}

func TestActivitiesRecordDomainEvents(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	item := seedItem(t, repo, "widget", 10, 50, 80)
	customer := seedCustomer(t, repo, "asha")

	if _, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLineInput{{ItemID: item.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	activities, err := svc.RecentActivities(ctx, 10)
	if err != nil {
		t.Fatalf("recent activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}
	if activities[0].Type != domain.ActivityInvoice {
		t.Errorf("activity type = %q, want %q", activities[0].Type, domain.ActivityInvoice)
	}
}

// Package report computes read-only aggregates over the invoice history:
// dashboard counters, per-period profit summaries and customer rankings.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bahikhata/backend/internal/cache"
	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/store"
)

type Engine struct {
	repo  store.Repository
	cache cache.StatsCache
	ttl   time.Duration
	now   func() time.Time
}

func NewEngine(repo store.Repository, statsCache cache.StatsCache, ttl time.Duration) *Engine {
	return &Engine{
		repo:  repo,
		cache: statsCache,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (e *Engine) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	return e.repo.GetDashboardStats(ctx)
}

// ProfitSummary aggregates invoices whose date falls inside the requested
// period. Returns on already-processed invoices are reflected automatically
// because returns rewrite the parent invoice's totals in place.
func (e *Engine) ProfitSummary(ctx context.Context, period string) (*domain.ProfitSummary, error) {
	start, err := e.periodStart(period)
	if err != nil {
		return nil, err
	}

	if cached, ok := e.cache.GetProfitSummary(ctx, period); ok {
		return cached, nil
	}

	invoices, err := e.repo.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	summary := domain.ProfitSummary{Period: period}
	for _, inv := range invoices {
		if inv.Date.Before(start) {
			continue
		}
		summary.GrossSales = domain.Round2(summary.GrossSales + inv.Subtotal)
		summary.TotalDiscounts = domain.Round2(summary.TotalDiscounts + inv.DiscountAmount)
		summary.TotalCost = domain.Round2(summary.TotalCost + inv.TotalCostPrice)
	}
	summary.NetSales = domain.Round2(summary.GrossSales - summary.TotalDiscounts)
	summary.TotalProfit = domain.Round2(summary.NetSales - summary.TotalCost)

	e.cache.SetProfitSummary(ctx, period, summary, e.ttl)
	return &summary, nil
}

// CustomerRankings orders customers by accumulated profit, most profitable
// first. Customers with no invoices do not appear.
func (e *Engine) CustomerRankings(ctx context.Context) ([]domain.CustomerRanking, error) {
	invoices, err := e.repo.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	byCustomer := make(map[string]*domain.CustomerRanking)
	for _, inv := range invoices {
		r, ok := byCustomer[inv.CustomerID]
		if !ok {
			r = &domain.CustomerRanking{CustomerID: inv.CustomerID, CustomerName: inv.CustomerName}
			byCustomer[inv.CustomerID] = r
		}
		r.TotalProfit = domain.Round2(r.TotalProfit + inv.Profit)
		r.TotalAmount = domain.Round2(r.TotalAmount + inv.Total)
		r.TotalOrders++
	}

	rankings := make([]domain.CustomerRanking, 0, len(byCustomer))
	for _, r := range byCustomer {
		rankings = append(rankings, *r)
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].TotalProfit != rankings[j].TotalProfit {
			return rankings[i].TotalProfit > rankings[j].TotalProfit
		}
		return rankings[i].CustomerName < rankings[j].CustomerName
	})
	return rankings, nil
}

// periodStart returns the lower bound of the reporting window. Daily starts
// at local midnight; weekly, monthly and yearly are rolling windows ending
// now.
func (e *Engine) periodStart(period string) (time.Time, error) {
	now := e.now()
	switch period {
	case domain.PeriodDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	case domain.PeriodWeekly:
		return now.AddDate(0, 0, -7), nil
	case domain.PeriodMonthly:
		return now.AddDate(0, -1, 0), nil
	case domain.PeriodYearly:
		return now.AddDate(-1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown period %q", store.ErrInvalidInput, period)
	}
}

package cache

import (
	"context"
	"time"

	"bahikhata/backend/internal/domain"
)

// StatsCache holds computed profit summaries keyed by reporting period so
// repeated dashboard hits do not rescan the invoice history.
type StatsCache interface {
	GetProfitSummary(ctx context.Context, period string) (*domain.ProfitSummary, bool)
	SetProfitSummary(ctx context.Context, period string, summary domain.ProfitSummary, ttl time.Duration)
	Invalidate(ctx context.Context)
}

// Noop satisfies StatsCache without storing anything. Used when no Redis
// address is configured.
type Noop struct{}

func (Noop) GetProfitSummary(ctx context.Context, period string) (*domain.ProfitSummary, bool) {
	return nil, false
}

func (Noop) SetProfitSummary(ctx context.Context, period string, summary domain.ProfitSummary, ttl time.Duration) {
}

func (Noop) Invalidate(ctx context.Context) {}

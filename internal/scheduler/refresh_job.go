package scheduler

import (
	"context"

	"folio/internal/application/service"
)

// RefreshJob runs the same price-refresh workflow as the admin endpoint on a
// schedule. Provider failures land in meta.lastError exactly like manual
// refreshes.
type RefreshJob struct {
	portfolio *service.PortfolioService
}

func NewRefreshJob(portfolio *service.PortfolioService) *RefreshJob {
	return &RefreshJob{portfolio: portfolio}
}

func (j *RefreshJob) Name() string { return "refresh-prices" }

func (j *RefreshJob) Run() error {
	_, err := j.portfolio.RefreshPrices(context.Background())
	return err
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quoteflow/pkg/db/models"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
)

// UnrecordedReportJobName labels the report in logs and metrics.
const UnrecordedReportJobName = "unrecorded_charge_report"

// OpenChargeLister reads the open entries of the unrecorded charge journal.
type OpenChargeLister interface {
	ListOpen(ctx context.Context, limit int) ([]models.UnrecordedCharge, error)
	CountOpen(ctx context.Context) (int64, error)
}

// UnrecordedReportJob surfaces approved charges the backend never recorded so
// support can reconcile them by hand.
type UnrecordedReportJob struct {
	journal OpenChargeLister
	logg    *logger.Logger
	metrics *metrics.JobMetrics
	limit   int
	now     func() time.Time
}

// NewUnrecordedReportJob builds the report job.
func NewUnrecordedReportJob(journal OpenChargeLister, limit int, logg *logger.Logger, m *metrics.JobMetrics) (*UnrecordedReportJob, error) {
	if journal == nil {
		return nil, fmt.Errorf("journal required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if limit <= 0 {
		limit = 100
	}
	return &UnrecordedReportJob{
		journal: journal,
		logg:    logg,
		metrics: m,
		limit:   limit,
		now:     time.Now,
	}, nil
}

func (j *UnrecordedReportJob) Name() string { return UnrecordedReportJobName }

func (j *UnrecordedReportJob) Run(ctx context.Context) error {
	count, err := j.journal.CountOpen(ctx)
	if err != nil {
		return fmt.Errorf("count unrecorded charges: %w", err)
	}
	// the gauge tracks the whole backlog; only the oldest batch is logged
	j.metrics.SetUnrecordedOpen(int(count))
	if count == 0 {
		return nil
	}

	open, err := j.journal.ListOpen(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list unrecorded charges: %w", err)
	}

	total := decimal.Zero
	for _, charge := range open {
		amount := decimal.New(charge.AmountCents, -2)
		total = total.Add(amount)
		chargeCtx := j.logg.WithFields(ctx, map[string]any{
			"charge_id":      charge.ID.String(),
			"flow_id":        charge.FlowID,
			"order_number":   charge.OrderNumber,
			"transaction_id": charge.GatewayTransactionID,
			"amount":         amount.StringFixed(2),
			"currency":       charge.Currency,
			"age_minutes":    int64(j.now().Sub(charge.CreatedAt).Minutes()),
		})
		j.logg.Warn(chargeCtx, "payment.unrecorded_open")
	}

	summaryCtx := j.logg.WithFields(ctx, map[string]any{
		"open_count":   count,
		"listed":       len(open),
		"listed_total": total.StringFixed(2),
		"truncated":    count > int64(len(open)),
	})
	j.logg.Warn(summaryCtx, "payment.unrecorded_backlog")
	return nil
}

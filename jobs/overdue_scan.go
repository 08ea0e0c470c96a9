package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// OverdueScanJob walks every tenant and reports invoices past their due
// date with an open balance. Overdue is never written back to the
// invoice row; the scan only surfaces the derived state for follow-up.
type OverdueScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(pool *pgxpool.Pool, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	cutoff := j.now().AddDate(0, 0, -payload.GraceDays)

	logger := j.logger()
	logger.Info("starting overdue scan", slog.Time("cutoff", cutoff))
	start := j.now()

	companies, err := j.companyIDs(ctx)
	if err != nil {
		logger.Error("list companies", slog.Any("error", err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, companyID := range companies {
		companyID := companyID
		g.Go(func() error {
			count, total, err := j.scanCompany(gctx, companyID, cutoff)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Warn("overdue invoices found",
					slog.Int64("company_id", companyID),
					slog.Int("invoices", count),
					slog.Float64("outstanding", total),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("overdue scan failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed overdue scan",
		slog.Int("companies", len(companies)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *OverdueScanJob) companyIDs(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT company_id FROM invoices ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (j *OverdueScanJob) scanCompany(ctx context.Context, companyID int64, cutoff time.Time) (int, float64, error) {
	var count int
	var total float64
	err := j.Pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(amount_due), 0)
FROM invoices
WHERE company_id=$1 AND status IN ('SENT','PARTIALLY_PAID') AND amount_due > 0.01 AND due_date < $2`,
		companyID, cutoff).Scan(&count, &total)
	return count, total, err
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskOverdueScan))
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

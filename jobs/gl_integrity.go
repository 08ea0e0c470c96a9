package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const integrityEpsilon = 0.01

// GLIntegrityJob verifies that the posted ledger is balanced: for each
// fiscal period the debits and credits of posted journal entries must
// sum to the same figure. An imbalance means a bug in a posting path
// and is logged loudly for on-call to pick up.
type GLIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewGLIntegrityJob initialises the integrity check handler.
func NewGLIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *GLIntegrityJob {
	return &GLIntegrityJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type periodBalance struct {
	PeriodID  int64
	CompanyID int64
	Code      string
	Debits    float64
	Credits   float64
}

// Handle executes the integrity check.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	start := j.now()
	logger.Info("starting gl integrity check", slog.Int64("period_id", payload.PeriodID))

	balances, err := j.periodBalances(ctx, payload.PeriodID)
	if err != nil {
		logger.Error("load period balances", slog.Any("error", err))
		return err
	}

	var broken int
	for _, b := range balances {
		if math.Abs(b.Debits-b.Credits) <= integrityEpsilon {
			continue
		}
		broken++
		logger.Error("ledger imbalance detected",
			slog.Int64("company_id", b.CompanyID),
			slog.Int64("period_id", b.PeriodID),
			slog.String("period", b.Code),
			slog.Float64("debits", b.Debits),
			slog.Float64("credits", b.Credits),
			slog.Float64("difference", b.Debits-b.Credits),
		)
	}

	logger.Info("completed gl integrity check",
		slog.Int("periods", len(balances)),
		slog.Int("imbalanced", broken),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *GLIntegrityJob) periodBalances(ctx context.Context, periodID int64) ([]periodBalance, error) {
	query := `SELECT p.id, p.company_id, p.code,
       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM fiscal_periods p
JOIN journal_entries e ON e.period_id = p.id AND e.status = 'POSTED'
JOIN journal_lines l ON l.journal_id = e.id`
	args := []any{}
	if periodID > 0 {
		query += ` WHERE p.id=$1`
		args = append(args, periodID)
	}
	query += ` GROUP BY p.id, p.company_id, p.code ORDER BY p.id`

	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []periodBalance
	for rows.Next() {
		var b periodBalance
		if err := rows.Scan(&b.PeriodID, &b.CompanyID, &b.Code, &b.Debits, &b.Credits); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

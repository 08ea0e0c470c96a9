package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/party"
)

// AgingRefreshJob rebuilds the aging snapshot for every party from its
// open items' actual due dates. The snapshot feeds dashboards that
// would be too slow to compute per request.
type AgingRefreshJob struct {
	Pool    *pgxpool.Pool
	Parties *party.PGRepository
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewAgingRefreshJob initialises the aging refresh handler.
func NewAgingRefreshJob(pool *pgxpool.Pool, parties *party.PGRepository, logger *slog.Logger) *AgingRefreshJob {
	return &AgingRefreshJob{
		Pool:    pool,
		Parties: parties,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the aging refresh.
func (j *AgingRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil || j.Parties == nil {
		return errors.New("aging refresh: handler not configured")
	}
	var payload AgingRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := j.now()

	logger := j.logger()
	logger.Info("starting aging refresh", slog.Int64("company_id", payload.CompanyID))
	start := asOf

	parties, err := j.listParties(ctx, payload.CompanyID)
	if err != nil {
		logger.Error("list parties", slog.Any("error", err))
		return err
	}

	var refreshed int
	for _, p := range parties {
		items, err := j.Parties.OpenItems(ctx, p.CompanyID, p.ID)
		if err != nil {
			logger.Error("load open items", slog.Int64("party_id", p.ID), slog.Any("error", err))
			return err
		}
		report := party.BucketItems(p.ID, asOf, items)
		if err := j.storeSnapshot(ctx, p.CompanyID, report); err != nil {
			logger.Error("store snapshot", slog.Int64("party_id", p.ID), slog.Any("error", err))
			return err
		}
		refreshed++
	}

	logger.Info("completed aging refresh",
		slog.Int("parties", refreshed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *AgingRefreshJob) listParties(ctx context.Context, companyID int64) ([]party.Party, error) {
	query := `SELECT id, company_id FROM parties WHERE status != 'INACTIVE'`
	args := []any{}
	if companyID > 0 {
		query += ` AND company_id=$1`
		args = append(args, companyID)
	}
	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []party.Party
	for rows.Next() {
		var p party.Party
		if err := rows.Scan(&p.ID, &p.CompanyID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (j *AgingRefreshJob) storeSnapshot(ctx context.Context, companyID int64, report party.Aging) error {
	_, err := j.Pool.Exec(ctx, `INSERT INTO party_aging_snapshots (company_id, party_id, as_of, current, days_1_30, days_31_60, days_61_90, over_90, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (company_id, party_id) DO UPDATE SET
  as_of=EXCLUDED.as_of, current=EXCLUDED.current, days_1_30=EXCLUDED.days_1_30,
  days_31_60=EXCLUDED.days_31_60, days_61_90=EXCLUDED.days_61_90,
  over_90=EXCLUDED.over_90, total=EXCLUDED.total`,
		companyID, report.PartyID, report.AsOf, report.Current, report.Days1To30, report.Days31To60, report.Days61To90, report.Over90, report.Total)
	return err
}

func (j *AgingRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAgingRefresh))
	}
	return slog.Default().With(slog.String("job", TaskAgingRefresh))
}

func (j *AgingRefreshJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

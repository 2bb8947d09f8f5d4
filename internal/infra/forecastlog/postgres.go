package forecastlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// PostgresRunLog persists forecast runs in the forecast_runs table.
// Feature vectors are stored as pgvector columns.
type PostgresRunLog struct {
	pool *pgxpool.Pool
}

// NewPostgresRunLog constructs the run log.
func NewPostgresRunLog(pool *pgxpool.Pool) *PostgresRunLog {
	return &PostgresRunLog{pool: pool}
}

// Append inserts a run row.
func (l *PostgresRunLog) Append(ctx context.Context, run forecast.Run) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO forecast_runs (id, region_code, source, days, history_size, current_features, first_day_features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Region, string(run.Source), run.Days, run.HistorySize,
		pgvector.NewVector(toFloat32(run.Current)), pgvector.NewVector(toFloat32(run.FirstDay)), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert forecast run: %w", err)
	}
	return nil
}

// Recent lists the newest runs for a region.
func (l *PostgresRunLog) Recent(ctx context.Context, region string, limit int) ([]forecast.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, region_code, source, days, history_size, current_features, first_day_features, created_at
		FROM forecast_runs
		WHERE region_code = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, region, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]forecast.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (forecast.Run, error) {
	var (
		run      forecast.Run
		source   string
		current  pgvector.Vector
		firstDay pgvector.Vector
	)
	if err := row.Scan(&run.ID, &run.Region, &source, &run.Days, &run.HistorySize, &current, &firstDay, &run.CreatedAt); err != nil {
		return forecast.Run{}, err
	}
	run.Source = forecast.Source(source)
	run.Current = fromFloat32(current.Slice())
	run.FirstDay = fromFloat32(firstDay.Slice())
	return run, nil
}

func toFloat32(v forecast.FeatureVector) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func fromFloat32(values []float32) forecast.FeatureVector {
	var v forecast.FeatureVector
	for i := 0; i < len(v) && i < len(values); i++ {
		v[i] = float64(values[i])
	}
	return v
}

var _ forecast.RunLog = (*PostgresRunLog)(nil)

// Package postgres stores metrics in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/liveperf/internal/errs"
	"github.com/and161185/liveperf/internal/utils"
	"github.com/and161185/liveperf/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS metrics (
	id    TEXT PRIMARY KEY,
	type  TEXT NOT NULL,
	delta BIGINT,
	value DOUBLE PRECISION
)`

const upsertMetric = `
INSERT INTO metrics (id, type, delta, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	type  = EXCLUDED.type,
	delta = CASE
		WHEN metrics.type = 'counter' AND EXCLUDED.type = 'counter'
		THEN COALESCE(metrics.delta, 0) + COALESCE(EXCLUDED.delta, 0)
		ELSE EXCLUDED.delta
	END,
	value = EXCLUDED.value
RETURNING delta`

type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage connects to dsn and creates the metrics table if needed.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	err = utils.WithRetry(ctx, func() error {
		_, e := db.Exec(ctx, createTable)
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

func (store *PostgresStorage) Save(ctx context.Context, m *model.Metric) error {
	return utils.WithRetry(ctx, func() error {
		return store.db.QueryRow(ctx, upsertMetric, m.ID, string(m.Type), m.Delta, m.Value).Scan(&m.Delta)
	})
}

func (store *PostgresStorage) SaveBatch(ctx context.Context, metrics []model.Metric) error {
	return utils.WithRetry(ctx, func() error {
		tx, err := store.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for i := range metrics {
			m := &metrics[i]
			if err := tx.QueryRow(ctx, upsertMetric, m.ID, string(m.Type), m.Delta, m.Value).Scan(&m.Delta); err != nil {
				return fmt.Errorf("save %s: %w", m.ID, err)
			}
		}
		return tx.Commit(ctx)
	})
}

func (store *PostgresStorage) Get(ctx context.Context, m *model.Metric) (*model.Metric, error) {
	res := &model.Metric{}
	var typ string
	err := utils.WithRetry(ctx, func() error {
		return store.db.QueryRow(ctx,
			`SELECT id, type, delta, value FROM metrics WHERE id = $1`, m.ID,
		).Scan(&res.ID, &typ, &res.Delta, &res.Value)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return m, errs.ErrMetricNotFound
	}
	if err != nil {
		return m, err
	}
	res.Type = model.MetricType(typ)
	if m.Type != "" && res.Type != m.Type {
		return m, errs.ErrMetricNotFound
	}
	return res, nil
}

func (store *PostgresStorage) GetAll(ctx context.Context) (map[string]*model.Metric, error) {
	rows, err := store.db.Query(ctx, `SELECT id, type, delta, value FROM metrics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*model.Metric)
	for rows.Next() {
		m := &model.Metric{}
		var typ string
		if err := rows.Scan(&m.ID, &typ, &m.Delta, &m.Value); err != nil {
			return nil, err
		}
		m.Type = model.MetricType(typ)
		result[m.ID] = m
	}
	return result, rows.Err()
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStorage) Close() {
	store.db.Close()
}

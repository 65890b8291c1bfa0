// Package sqlite stores metrics in a local SQLite file (pure Go driver).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/and161185/liveperf/internal/errs"
	"github.com/and161185/liveperf/internal/utils"
	"github.com/and161185/liveperf/model"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS metrics (
	id    TEXT PRIMARY KEY,
	type  TEXT NOT NULL,
	delta INTEGER,
	value REAL
)`

const upsertMetric = `
INSERT INTO metrics (id, type, delta, value)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	delta = CASE
		WHEN metrics.type = 'counter' AND excluded.type = 'counter'
		THEN COALESCE(metrics.delta, 0) + COALESCE(excluded.delta, 0)
		ELSE excluded.delta
	END,
	type  = excluded.type,
	value = excluded.value
RETURNING delta`

type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func save(ctx context.Context, q execer, m *model.Metric) error {
	var delta sql.NullInt64
	if err := q.QueryRowContext(ctx, upsertMetric, m.ID, string(m.Type), m.Delta, m.Value).Scan(&delta); err != nil {
		return err
	}
	if delta.Valid {
		m.Delta = utils.Ptr(delta.Int64)
	}
	return nil
}

func (store *SQLiteStorage) Save(ctx context.Context, m *model.Metric) error {
	return save(ctx, store.db, m)
}

func (store *SQLiteStorage) SaveBatch(ctx context.Context, metrics []model.Metric) error {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range metrics {
		if err := save(ctx, tx, &metrics[i]); err != nil {
			return fmt.Errorf("save %s: %w", metrics[i].ID, err)
		}
	}
	return tx.Commit()
}

func (store *SQLiteStorage) Get(ctx context.Context, m *model.Metric) (*model.Metric, error) {
	res, err := scanMetric(store.db.QueryRowContext(ctx,
		`SELECT id, type, delta, value FROM metrics WHERE id = ?`, m.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return m, errs.ErrMetricNotFound
	}
	if err != nil {
		return m, err
	}
	if m.Type != "" && res.Type != m.Type {
		return m, errs.ErrMetricNotFound
	}
	return res, nil
}

func (store *SQLiteStorage) GetAll(ctx context.Context) (map[string]*model.Metric, error) {
	rows, err := store.db.QueryContext(ctx, `SELECT id, type, delta, value FROM metrics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*model.Metric)
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		result[m.ID] = m
	}
	return result, rows.Err()
}

func (store *SQLiteStorage) Ping(ctx context.Context) error {
	return store.db.PingContext(ctx)
}

func (store *SQLiteStorage) Close() error {
	return store.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetric(s scanner) (*model.Metric, error) {
	var (
		m     model.Metric
		typ   string
		delta sql.NullInt64
		value sql.NullFloat64
	)
	if err := s.Scan(&m.ID, &typ, &delta, &value); err != nil {
		return nil, err
	}
	m.Type = model.MetricType(typ)
	if delta.Valid {
		m.Delta = utils.Ptr(delta.Int64)
	}
	if value.Valid {
		m.Value = utils.Ptr(value.Float64)
	}
	return &m, nil
}

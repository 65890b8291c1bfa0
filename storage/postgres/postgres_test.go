package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/and161185/liveperf/internal/errs"
	"github.com/and161185/liveperf/model"
	"github.com/stretchr/testify/require"
)

// Runs against a real database only when TEST_DATABASE_DSN is set.
func newTestStorage(t *testing.T) *PostgresStorage {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()
	st, err := NewPostgresStorage(ctx, dsn)
	require.NoError(t, err)
	_, err = st.db.Exec(ctx, `TRUNCATE metrics`)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPostgresStorage_SaveGet(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)

	require.NoError(t, st.Save(ctx, model.NewGauge("DataRenderDelay", 600)))
	require.NoError(t, st.Save(ctx, model.NewCounter("DataRenderDelayCount", 2)))
	c := model.NewCounter("DataRenderDelayCount", 3)
	require.NoError(t, st.Save(ctx, c))
	require.EqualValues(t, 5, *c.Delta)

	g, err := st.Get(ctx, &model.Metric{ID: "DataRenderDelay", Type: model.Gauge})
	require.NoError(t, err)
	require.Equal(t, 600.0, *g.Value)

	_, err = st.Get(ctx, &model.Metric{ID: "missing"})
	require.ErrorIs(t, err, errs.ErrMetricNotFound)
}

func TestPostgresStorage_SaveBatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)

	require.NoError(t, st.SaveBatch(ctx, []model.Metric{
		*model.NewCounter("c", 1),
		*model.NewCounter("c", 1),
		*model.NewGauge("g", 2),
	}))

	all, err := st.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.EqualValues(t, 2, *all["c"].Delta)
	require.NoError(t, st.Ping(ctx))
}

package perf

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/liveperf/internal/delay"
	"github.com/and161185/liveperf/internal/frame"
	"github.com/and161185/liveperf/model"
	"github.com/and161185/liveperf/storage/inmemory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type errStorage struct{}

func (errStorage) SaveBatch(_ context.Context, _ []model.Metric) error {
	return errors.New("save failed")
}

func TestCollector_Stats(t *testing.T) {
	c := NewCollector(inmemory.NewMemStorage(), nil)
	c.Add("DataRenderDelay", 600)
	c.Add("DataRenderDelay", 400)
	c.Add("DataRenderDelay", 500)

	s := c.Stats()["DataRenderDelay"]
	require.EqualValues(t, 3, s.Count)
	require.Equal(t, 400.0, s.Min)
	require.Equal(t, 600.0, s.Max)
	require.Equal(t, 500.0, s.Last)
	require.Equal(t, 500.0, s.Mean())
}

func TestCollector_NegativeValuesKept(t *testing.T) {
	c := NewCollector(inmemory.NewMemStorage(), nil)
	c.Add("DataRenderDelay", -50)
	c.Add("DataRenderDelay", 10)

	s := c.Stats()["DataRenderDelay"]
	require.Equal(t, -50.0, s.Min)
	require.Equal(t, -20.0, s.Mean())
}

func TestStats_MeanEmpty(t *testing.T) {
	require.Zero(t, Stats{}.Mean())
}

func TestCollector_Flush(t *testing.T) {
	ctx := context.Background()
	st := inmemory.NewMemStorage()
	c := NewCollector(st, nil)

	c.Add("DataRenderDelay", 600)
	c.Add("DataRenderDelay", 200)
	require.NoError(t, c.Flush(ctx))
	require.Empty(t, c.Stats())

	all, err := st.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 200.0, *all["DataRenderDelay"].Value)
	require.EqualValues(t, 2, *all["DataRenderDelayCount"].Delta)
	require.Equal(t, 200.0, *all["DataRenderDelayMin"].Value)
	require.Equal(t, 600.0, *all["DataRenderDelayMax"].Value)
	require.Equal(t, 400.0, *all["DataRenderDelayMean"].Value)

	// counters keep accumulating across flushes
	c.Add("DataRenderDelay", 100)
	require.NoError(t, c.Flush(ctx))
	all, _ = st.GetAll(ctx)
	require.EqualValues(t, 3, *all["DataRenderDelayCount"].Delta)
	require.Equal(t, 100.0, *all["DataRenderDelayMax"].Value)
}

func TestCollector_FlushEmpty(t *testing.T) {
	st := inmemory.NewMemStorage()
	require.NoError(t, NewCollector(st, nil).Flush(context.Background()))
	all, _ := st.GetAll(context.Background())
	require.Empty(t, all)
}

func TestCollector_FlushErrorLogged(t *testing.T) {
	core, obs := observer.New(zap.ErrorLevel)
	c := NewCollector(errStorage{}, zap.New(core).Sugar())
	c.Add("DataRenderDelay", 1)

	require.Error(t, c.Flush(context.Background()))
	require.Equal(t, 1, obs.Len())
	require.Empty(t, c.Stats())
}

func TestCollector_AsTrackerSink(t *testing.T) {
	c := NewCollector(inmemory.NewMemStorage(), nil)
	tr := delay.NewTracker(c, delay.WithClock(func() int64 { return 1000 }))

	f := frame.New("", frame.NewTimeField("time", 100, 200, 300))
	tr.RecordRender(f, f)
	f.TimeVector().Append(400, 500, 600)
	tr.RecordRender(f, f)

	s := c.Stats()[delay.DataRenderDelay]
	require.EqualValues(t, 3, s.Count)
	require.Equal(t, 400.0, s.Min)
	require.Equal(t, 600.0, s.Max)
	require.Equal(t, 400.0, s.Last)
}

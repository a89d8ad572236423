package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
	"github.com/denisok6893-rgb/building-insights/internal/filtering"
	"github.com/denisok6893-rgb/building-insights/internal/observability"
	"github.com/denisok6893-rgb/building-insights/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const csv = `Area,Building_Type,Building_Status,Construction_Year,Cluster,Number_of_Floors,Energy_Consumption_Per_SqM,Water_Usage_Per_Building,Waste_Recycled_Percentage,Occupancy_Rate
North,Residential,Operational,1995,0,3,100,2000,40,80
South,Commercial,Closed,2010,2,12,200,3000,60,50
broken,row
North,Commercial,Operational,2010,2,7,300,1000,20,70
`

type stubLoader struct {
	mu   sync.Mutex
	raw  string
	err  error
	hits int
}

func (s *stubLoader) load(ctx context.Context) (storage.ParseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	if s.err != nil {
		return storage.ParseResult{}, s.err
	}
	return storage.ParseRecords(s.raw, ",")
}

func (s *stubLoader) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type stubAdvisor struct {
	metrics domain.ModelMetrics
	err     error
}

func (s stubAdvisor) ModelMetrics(ctx context.Context) (domain.ModelMetrics, error) {
	return s.metrics, s.err
}

func newController(t *testing.T, l *stubLoader, adv MetricsSource) *Controller {
	t.Helper()
	eng, err := filtering.NewEngine(filtering.DefaultViews())
	require.NoError(t, err)
	return NewController(Options{
		Engine:  eng,
		Load:    l.load,
		Advisor: adv,
		Logger:  zaptest.NewLogger(t),
		Metrics: observability.NewMetrics(),
		Now:     func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func TestController_LoadAndCurrent(t *testing.T) {
	c := newController(t, &stubLoader{raw: csv}, nil)
	require.NoError(t, c.Load(context.Background()))

	h := c.Health()
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 3, h.Records)
	assert.Equal(t, 1, h.Malformed)

	sel, err := c.Current("dashboard")
	require.NoError(t, err)
	assert.Len(t, sel.Records, 3)
	assert.Equal(t, 3, sel.Summary.Count)
	assert.InDelta(t, 200.0, float64(sel.Summary.AvgEnergy), 1e-9)
	assert.True(t, sel.Criteria.IsEmpty())

	ds := c.Dataset()
	require.NotNil(t, ds)
	assert.Equal(t, []string{"2010", "1995"}, ds.Options.Years)
}

func TestController_InitialLoadFailureLeavesEmptyDataset(t *testing.T) {
	l := &stubLoader{err: errors.New("connection refused")}
	c := newController(t, l, nil)

	assert.Error(t, c.Load(context.Background()))
	assert.Nil(t, c.Dataset())

	h := c.Health()
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "connection refused", h.LastError)

	sel, err := c.Current("analytics")
	require.NoError(t, err)
	assert.Empty(t, sel.Records)
	assert.False(t, sel.Summary.AvgEnergy.Valid())

	crit, _ := filtering.FromForm(map[string]string{"area": "North"})
	sel, err = c.Apply("analytics", crit)
	require.NoError(t, err)
	assert.Empty(t, sel.Records)
}

func TestController_ReloadFailureKeepsPreviousDataset(t *testing.T) {
	l := &stubLoader{raw: csv}
	c := newController(t, l, nil)
	require.NoError(t, c.Load(context.Background()))

	l.fail(errors.New("timeout"))
	assert.Error(t, c.Load(context.Background()))

	require.NotNil(t, c.Dataset())
	assert.Len(t, c.Dataset().Records, 3)
	assert.Equal(t, "degraded", c.Health().Status)
}

func TestController_ApplyResetPerView(t *testing.T) {
	c := newController(t, &stubLoader{raw: csv}, nil)
	require.NoError(t, c.Load(context.Background()))

	crit, _ := filtering.FromForm(map[string]string{"area": "North", "cluster": "2"})

	sel, err := c.Apply("analytics", crit)
	require.NoError(t, err)
	require.Len(t, sel.Records, 1)
	assert.Equal(t, "7", sel.Records[0]["Number_of_Floors"])
	assert.Equal(t, []string{filtering.Area, filtering.Cluster}, sel.Criteria.Active())

	// overview exposes area but not cluster
	sel, err = c.Apply("overview", crit)
	require.NoError(t, err)
	assert.Len(t, sel.Records, 2)
	assert.Equal(t, []string{filtering.Area}, sel.Criteria.Active())

	cur, err := c.Current("analytics")
	require.NoError(t, err)
	assert.Len(t, cur.Records, 1)

	cur, err = c.Current("dashboard")
	require.NoError(t, err)
	assert.Len(t, cur.Records, 3, "other views are unaffected")

	require.NoError(t, c.Reset("analytics"))
	cur, err = c.Current("analytics")
	require.NoError(t, err)
	assert.Len(t, cur.Records, 3)

	cur, err = c.Current("overview")
	require.NoError(t, err)
	assert.Len(t, cur.Records, 2)
}

func TestController_ReloadClearsSelections(t *testing.T) {
	c := newController(t, &stubLoader{raw: csv}, nil)
	require.NoError(t, c.Load(context.Background()))

	crit, _ := filtering.FromForm(map[string]string{"status": "Closed"})
	_, err := c.Apply("dashboard", crit)
	require.NoError(t, err)

	require.NoError(t, c.Load(context.Background()))
	cur, err := c.Current("dashboard")
	require.NoError(t, err)
	assert.Len(t, cur.Records, 3)
}

func TestController_UnknownView(t *testing.T) {
	c := newController(t, &stubLoader{raw: csv}, nil)
	_, err := c.Apply("nope", filtering.Criteria{})
	assert.ErrorIs(t, err, filtering.ErrUnknownView)
	_, err = c.Current("nope")
	assert.ErrorIs(t, err, filtering.ErrUnknownView)
	assert.ErrorIs(t, c.Reset("nope"), filtering.ErrUnknownView)
}

func TestController_Warmup(t *testing.T) {
	want := domain.ModelMetrics{Energy: domain.ModelScore{MAE: 1, MSE: 2, R2: 0.9}}
	l := &stubLoader{raw: csv}
	c := newController(t, l, stubAdvisor{metrics: want})

	_, err := c.CachedModelMetrics()
	assert.ErrorIs(t, err, ErrNoMetrics)

	require.NoError(t, c.Warmup(context.Background()))
	assert.Equal(t, 1, l.hits)
	assert.NotNil(t, c.Dataset())

	got, err := c.CachedModelMetrics()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestController_WarmupReportsFailureButLoadsDataset(t *testing.T) {
	c := newController(t, &stubLoader{raw: csv}, stubAdvisor{err: errors.New("advisor down")})

	err := c.Warmup(context.Background())
	assert.EqualError(t, err, "advisor down")
	assert.NotNil(t, c.Dataset())
	_, err = c.CachedModelMetrics()
	assert.ErrorIs(t, err, ErrNoMetrics)
}

func TestController_ConcurrentApply(t *testing.T) {
	c := newController(t, &stubLoader{raw: csv}, nil)
	require.NoError(t, c.Load(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			crit, _ := filtering.FromForm(map[string]string{"minFloors": "5"})
			if i%2 == 0 {
				_, _ = c.Apply("dashboard", crit)
			} else {
				_, _ = c.Current("dashboard")
			}
		}(i)
	}
	wg.Wait()

	cur, err := c.Current("dashboard")
	require.NoError(t, err)
	assert.Len(t, cur.Records, 2)
}

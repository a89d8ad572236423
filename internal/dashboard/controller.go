package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/denisok6893-rgb/building-insights/internal/aggregate"
	"github.com/denisok6893-rgb/building-insights/internal/domain"
	"github.com/denisok6893-rgb/building-insights/internal/filtering"
	"github.com/denisok6893-rgb/building-insights/internal/observability"
	"github.com/denisok6893-rgb/building-insights/internal/storage"
)

// ErrNoMetrics is returned when model metrics were never fetched successfully.
var ErrNoMetrics = errors.New("model metrics not available")

// LoadFunc produces a freshly parsed dataset.
type LoadFunc func(ctx context.Context) (storage.ParseResult, error)

// SourceLoader loads from a file path or URL with a per-load timeout.
func SourceLoader(client *http.Client, source, delimiter string, timeout time.Duration) LoadFunc {
	return func(ctx context.Context) (storage.ParseResult, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return storage.FetchRecords(ctx, client, source, delimiter)
	}
}

// MetricsSource fetches model quality figures.
type MetricsSource interface {
	ModelMetrics(ctx context.Context) (domain.ModelMetrics, error)
}

// Dataset is one successful load. It is never mutated after creation.
type Dataset struct {
	Fields    []string
	Records   []domain.Record
	Malformed []storage.MalformedRow
	Options   aggregate.Options
	LoadedAt  time.Time
}

// Selection is the filtered subset a view currently shows.
type Selection struct {
	View      string
	Criteria  filtering.Criteria
	Records   []domain.Record
	Summary   aggregate.Summary
	AppliedAt time.Time
}

// Health summarizes whether a dataset is available.
type Health struct {
	Status    string    `json:"status"`
	Records   int       `json:"records"`
	Malformed int       `json:"malformed_rows"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type Options struct {
	Engine  *filtering.Engine
	Load    LoadFunc
	Advisor MetricsSource
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

// Controller owns the dataset and the per-view selections. The filter engine
// and aggregator only ever see them as arguments.
type Controller struct {
	engine  *filtering.Engine
	load    LoadFunc
	advisor MetricsSource
	log     *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	// serializes loads so a reload never interleaves with another
	loadMu sync.Mutex

	mu          sync.RWMutex
	dataset     *Dataset
	full        aggregate.Summary
	selections  map[string]Selection
	lastLoadErr error
	modelScores *domain.ModelMetrics
}

func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		engine:     opts.Engine,
		load:       opts.Load,
		advisor:    opts.Advisor,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
		selections: make(map[string]Selection),
		full:       aggregate.Summarize(nil),
	}
}

func (c *Controller) Engine() *filtering.Engine { return c.engine }

// Warmup performs the dataset load and the model metrics fetch concurrently.
// Both run to completion; the first error is returned for reporting only.
func (c *Controller) Warmup(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.Load(ctx) })
	if c.advisor != nil {
		g.Go(func() error {
			_, err := c.RefreshModelMetrics(ctx)
			return err
		})
	}
	return g.Wait()
}

// Load replaces the dataset. On failure the previous dataset (or none) stays
// in place and the error is remembered for health reporting. A successful
// load clears every view's selection.
func (c *Controller) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	res, err := c.load(ctx)
	if err != nil {
		c.metrics.DatasetLoadFailed()
		c.log.Error("dataset load failed", zap.Error(err))
		c.mu.Lock()
		c.lastLoadErr = err
		c.mu.Unlock()
		return err
	}

	for _, m := range res.Malformed {
		c.log.Warn("skipping malformed row",
			zap.Int("line", m.Line),
			zap.Int("fields", m.Got),
			zap.Int("expected", m.Want),
		)
	}

	ds := &Dataset{
		Fields:    res.Fields,
		Records:   res.Records,
		Malformed: res.Malformed,
		Options:   aggregate.FilterOptions(res.Records),
		LoadedAt:  c.now(),
	}
	full := aggregate.Summarize(ds.Records)

	c.mu.Lock()
	c.dataset = ds
	c.full = full
	c.selections = make(map[string]Selection)
	c.lastLoadErr = nil
	c.mu.Unlock()

	c.metrics.DatasetLoaded(len(ds.Records), len(ds.Malformed))
	c.log.Info("dataset loaded",
		zap.Int("records", len(ds.Records)),
		zap.Int("malformed_rows", len(ds.Malformed)),
		zap.Strings("fields", ds.Fields),
	)
	return nil
}

// Dataset returns the current dataset, or nil before the first good load.
func (c *Controller) Dataset() *Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataset
}

func (c *Controller) records() []domain.Record {
	if c.dataset == nil {
		return nil
	}
	return c.dataset.Records
}

// Apply filters the dataset for a view and makes the result that view's
// current selection. Subset and summary are computed in full before the
// selection is swapped in.
func (c *Controller) Apply(view string, criteria filtering.Criteria) (Selection, error) {
	restricted, err := c.engine.Restrict(view, criteria)
	if err != nil {
		return Selection{}, err
	}

	c.mu.RLock()
	ds := c.dataset
	c.mu.RUnlock()

	var all []domain.Record
	if ds != nil {
		all = ds.Records
	}
	subset := filtering.Apply(all, restricted)
	sel := Selection{
		View:      view,
		Criteria:  restricted,
		Records:   subset,
		Summary:   aggregate.Summarize(subset),
		AppliedAt: c.now(),
	}

	c.mu.Lock()
	// a reload in between invalidates this result
	if c.dataset == ds {
		c.selections[view] = sel
	}
	c.mu.Unlock()

	c.metrics.FilterApplied(view)
	c.log.Debug("filters applied",
		zap.String("view", view),
		zap.Strings("criteria", restricted.Active()),
		zap.Int("matched", len(subset)),
		zap.Int("total", len(all)),
	)
	return sel, nil
}

// Reset clears a view's selection so it shows the whole dataset again.
func (c *Controller) Reset(view string) error {
	if _, ok := c.engine.View(view); !ok {
		return filtering.ErrUnknownView
	}
	c.mu.Lock()
	delete(c.selections, view)
	c.mu.Unlock()
	c.log.Debug("filters reset", zap.String("view", view))
	return nil
}

// Current returns the view's selection, or the whole dataset when no
// filters are applied.
func (c *Controller) Current(view string) (Selection, error) {
	if _, ok := c.engine.View(view); !ok {
		return Selection{}, filtering.ErrUnknownView
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if sel, ok := c.selections[view]; ok {
		return sel, nil
	}
	var loadedAt time.Time
	if c.dataset != nil {
		loadedAt = c.dataset.LoadedAt
	}
	return Selection{
		View:      view,
		Records:   c.records(),
		Summary:   c.full,
		AppliedAt: loadedAt,
	}, nil
}

func (c *Controller) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := Health{Status: "ok"}
	if c.dataset != nil {
		h.Records = len(c.dataset.Records)
		h.Malformed = len(c.dataset.Malformed)
		h.LoadedAt = c.dataset.LoadedAt
	}
	if c.lastLoadErr != nil {
		h.LastError = c.lastLoadErr.Error()
	}
	if c.dataset == nil || c.lastLoadErr != nil {
		h.Status = "degraded"
	}
	return h
}

// RefreshModelMetrics fetches the metrics and caches them. A failed fetch
// keeps the previous cached value.
func (c *Controller) RefreshModelMetrics(ctx context.Context) (domain.ModelMetrics, error) {
	if c.advisor == nil {
		return domain.ModelMetrics{}, ErrNoMetrics
	}
	m, err := c.advisor.ModelMetrics(ctx)
	if err != nil {
		return domain.ModelMetrics{}, err
	}
	c.mu.Lock()
	c.modelScores = &m
	c.mu.Unlock()
	return m, nil
}

// CachedModelMetrics returns the last successfully fetched metrics.
func (c *Controller) CachedModelMetrics() (domain.ModelMetrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.modelScores == nil {
		return domain.ModelMetrics{}, ErrNoMetrics
	}
	return *c.modelScores, nil
}

// Package catalog keeps the listing metadata of every report together with the
// filter facets derived from it.
package catalog

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rag-dashboard/backend/internal/ingestion"
	"github.com/rag-dashboard/backend/internal/metrics"
	"github.com/rag-dashboard/backend/internal/reports"
	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/pkg/logger"
)

const DefaultLimit = 50

// Snapshot is an immutable view of the reports directory, newest first.
type Snapshot struct {
	Reports    []models.ReportMeta
	Facets     models.FilterFacets
	Generation uint64
	BuiltAt    time.Time
}

type ListQuery struct {
	Offset   int
	Limit    int
	Model    string
	Chunks   *int
	MinScore *float64
}

type ListResult struct {
	Reports []models.ReportMeta `json:"reports"`
	Total   int                 `json:"total"`
	Offset  int                 `json:"offset"`
	Limit   int                 `json:"limit"`
	HasMore bool                `json:"has_more"`
}

type Catalog struct {
	repo    *reports.Repository
	workers int

	mu         sync.Mutex
	generation uint64
	current    atomic.Pointer[Snapshot]
	builds     singleflight.Group
}

func New(repo *reports.Repository, workers int) *Catalog {
	if workers <= 0 {
		workers = 1
	}
	return &Catalog{repo: repo, workers: workers}
}

// Snapshot returns the current snapshot, building it on first use.
func (c *Catalog) Snapshot(ctx context.Context) *Snapshot {
	if s := c.current.Load(); s != nil {
		return s
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	// Callers of the same generation share a build; a cancelled caller must
	// not abort it for the others.
	buildCtx := context.WithoutCancel(ctx)
	v, _, _ := c.builds.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		s := c.build(buildCtx, gen)
		c.publish(s)
		return s, nil
	})
	return v.(*Snapshot)
}

// Invalidate discards the current snapshot. A build already in flight will not publish.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.current.Store(nil)
	c.mu.Unlock()

	metrics.CatalogInvalidations.Inc()
	logger.Info("Catalog invalidated")
}

// publish installs s unless the catalog was invalidated after s started building.
func (c *Catalog) publish(s *Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != s.Generation {
		return false
	}
	c.current.Store(s)
	return true
}

func (c *Catalog) Filters(ctx context.Context) models.FilterFacets {
	return c.Snapshot(ctx).Facets
}

// List filters by model, then chunk count, then minimum score, and pages the result.
func (c *Catalog) List(ctx context.Context, q ListQuery) ListResult {
	snap := c.Snapshot(ctx)

	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	filtered := make([]models.ReportMeta, 0, len(snap.Reports))
	for _, r := range snap.Reports {
		if q.Model != "" && r.Model != q.Model {
			continue
		}
		if q.Chunks != nil {
			if n, ok := r.ChunkCount(); !ok || n != *q.Chunks {
				continue
			}
		}
		if q.MinScore != nil && r.ScorePercent < *q.MinScore {
			continue
		}
		filtered = append(filtered, r)
	}

	total := len(filtered)
	start := min(q.Offset, total)
	end := start + min(q.Limit, total-start)

	return ListResult{
		Reports: filtered[start:end],
		Total:   total,
		Offset:  q.Offset,
		Limit:   q.Limit,
		HasMore: end < total,
	}
}

func (c *Catalog) build(ctx context.Context, gen uint64) *Snapshot {
	start := time.Now()
	snap := &Snapshot{
		Reports:    []models.ReportMeta{},
		Facets:     models.FilterFacets{Models: []string{}, Chunks: []int{}},
		Generation: gen,
	}

	files, err := c.repo.Files()
	if err != nil {
		logger.Warn("Reports directory unavailable", zap.String("dir", c.repo.Dir()), zap.Error(err))
		snap.BuiltAt = time.Now()
		return snap
	}

	metas := make([]models.ReportMeta, len(files))
	stamps := make([]ingestion.Timestamp, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range files {
		g.Go(func() error {
			base := filepath.Base(path)
			r, err := c.repo.Load(gctx, path)
			if err != nil {
				logger.Warn("Failed to load report", zap.String("file", base), zap.Error(err))
				r = models.NewParseErrorReport(ingestion.Stem(base), base, err)
			}
			metas[i] = r.ReportMeta
			stamps[i] = ingestion.ResolveTimestamp(base)
			return nil
		})
	}
	_ = g.Wait()

	order := make([]int, len(files))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return stamps[order[a]].After(stamps[order[b]])
	})
	for _, i := range order {
		snap.Reports = append(snap.Reports, metas[i])
	}

	snap.Facets = facets(snap.Reports)
	snap.BuiltAt = time.Now()

	metrics.CatalogBuilds.Inc()
	metrics.CatalogBuildDuration.Observe(time.Since(start).Seconds())
	metrics.CatalogReports.Set(float64(len(snap.Reports)))

	logger.Info("Catalog built",
		zap.Int("reports", len(snap.Reports)),
		zap.Int("models", len(snap.Facets.Models)),
		zap.Duration("duration", time.Since(start)),
	)
	return snap
}

func facets(metas []models.ReportMeta) models.FilterFacets {
	modelSet := make(map[string]struct{})
	chunkSet := make(map[int]struct{})
	for _, m := range metas {
		if !m.IsParseError() {
			modelSet[m.Model] = struct{}{}
		}
		if n, ok := m.ChunkCount(); ok {
			chunkSet[n] = struct{}{}
		}
	}

	f := models.FilterFacets{
		Models: make([]string, 0, len(modelSet)),
		Chunks: make([]int, 0, len(chunkSet)),
	}
	for m := range modelSet {
		f.Models = append(f.Models, m)
	}
	for n := range chunkSet {
		f.Chunks = append(f.Chunks, n)
	}
	sort.Strings(f.Models)
	sort.Ints(f.Chunks)
	return f
}

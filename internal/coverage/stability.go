package coverage

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rag-dashboard/backend/internal/storage/models"
)

type StabilityCounts struct {
	Total            int     `json:"total"`
	Tested           int     `json:"tested"`
	Stable           int     `json:"stable"`
	Unstable         int     `json:"unstable"`
	Broken           int     `json:"broken"`
	Untested         int     `json:"untested"`
	CoveragePercent  float64 `json:"coverage_percent"`
	StabilityPercent float64 `json:"stability_percent"`
}

func (s *StabilityCounts) add(status string) {
	s.Total++
	switch status {
	case "", models.StatusUntested:
		s.Untested++
		return
	case models.StatusStable:
		s.Stable++
	case models.StatusUnstable:
		s.Unstable++
	case models.StatusBroken:
		s.Broken++
	}
	s.Tested++
}

func (s *StabilityCounts) finish() {
	s.CoveragePercent = percent(s.Tested, s.Total)
	s.StabilityPercent = percent(s.Stable, s.Tested)
}

type StabilityStats struct {
	Overall     StabilityCounts                                  `json:"overall"`
	ByCategory  *orderedmap.OrderedMap[string, *StabilityCounts] `json:"by_category"`
	LastUpdated *string                                          `json:"last_updated"`
}

type StabilityArticle struct {
	Name   string               `json:"name"`
	Chunks []models.ChunkRecord `json:"chunks"`
	Stats  *StabilityCounts     `json:"stats"`
}

type StabilityCategory struct {
	Name     string              `json:"name"`
	Articles []*StabilityArticle `json:"articles"`
	Stats    *StabilityCounts    `json:"stats"`
}

type StabilityTree struct {
	Categories []*StabilityCategory `json:"categories"`
	Stats      StabilityCounts      `json:"stats"`
}

type StabilityChunkDetail struct {
	Chunk     IndexEntry      `json:"chunk"`
	Stability *StabilityEntry `json:"stability"`
}

// Stability reports how consistently retrieval finds each indexed chunk across runs.
type Stability struct {
	data *Datasets
}

func NewStability(data *Datasets) *Stability {
	return &Stability{data: data}
}

func (s *Stability) load() (*ChunkIndex, *StabilityDB) {
	idx, err := s.data.Index()
	loadOrEmpty(IndexFile, err)
	db, err := s.data.Stability()
	loadOrEmpty(StabilityFile, err)
	return idx, db
}

// categoryOf prefers the index category and falls back to the one recorded with the result.
func categoryOf(entry IndexEntry, result StabilityEntry, ok bool) string {
	if entry.Category == "" && ok && result.Category != "" {
		return result.Category
	}
	return entry.category()
}

func statusOf(result StabilityEntry, ok bool) string {
	if !ok || result.Status == "" {
		return models.StatusUntested
	}
	return result.Status
}

func (s *Stability) Stats() *StabilityStats {
	idx, db := s.load()

	stats := &StabilityStats{LastUpdated: db.Metadata.LastUpdated}
	byCategory := newOrdered[*StabilityCounts]()

	for pair := idx.Chunks.Oldest(); pair != nil; pair = pair.Next() {
		id, entry := pair.Key, pair.Value
		result, ok := db.Chunks.Get(id)
		name := categoryOf(entry, result, ok)

		c, seen := byCategory.Get(name)
		if !seen {
			c = &StabilityCounts{}
			byCategory.Set(name, c)
		}
		status := statusOf(result, ok)
		c.add(status)
		stats.Overall.add(status)
	}

	for pair := byCategory.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.finish()
	}
	stats.Overall.finish()
	stats.ByCategory = byCategory
	return stats
}

// Categories builds the category and article tree with each chunk's stored status.
func (s *Stability) Categories() *StabilityTree {
	idx, db := s.load()
	res, err := s.data.Results()
	loadOrEmpty(ResultsFile, err)

	tree := &StabilityTree{Categories: []*StabilityCategory{}}
	categories := newOrdered[*StabilityCategory]()
	articles := make(map[*StabilityCategory]*orderedmap.OrderedMap[string, *StabilityArticle])

	for pair := idx.Chunks.Oldest(); pair != nil; pair = pair.Next() {
		id, entry := pair.Key, pair.Value
		result, ok := db.Chunks.Get(id)
		name := categoryOf(entry, result, ok)

		cat, seen := categories.Get(name)
		if !seen {
			cat = &StabilityCategory{Name: name, Articles: []*StabilityArticle{}, Stats: &StabilityCounts{}}
			categories.Set(name, cat)
			articles[cat] = newOrdered[*StabilityArticle]()
		}
		art, seen := articles[cat].Get(entry.article())
		if !seen {
			art = &StabilityArticle{Name: entry.article(), Chunks: []models.ChunkRecord{}, Stats: &StabilityCounts{}}
			articles[cat].Set(art.Name, art)
			cat.Articles = append(cat.Articles, art)
		}

		status := statusOf(result, ok)
		cat.Stats.add(status)
		art.Stats.add(status)
		tree.Stats.add(status)

		record := models.ChunkRecord{
			ID:          id,
			Category:    name,
			Article:     entry.article(),
			TextPreview: preview(entry.TextPreview),
			Result:      models.TestResult{Status: status},
		}
		if ok {
			record.Result.TotalRuns = result.TotalRuns
			record.Result.Stability = result.Stability
		}
		if raw, tested := res.result(id); tested {
			record.Result.RAGFoundChunk = ragFound(raw)
		}
		art.Chunks = append(art.Chunks, record)
	}

	for pair := categories.Oldest(); pair != nil; pair = pair.Next() {
		cat := pair.Value
		cat.Stats.finish()
		for _, art := range cat.Articles {
			art.Stats.finish()
		}
		tree.Categories = append(tree.Categories, cat)
	}
	tree.Stats.finish()
	return tree
}

func (s *Stability) Chunk(id string) (*StabilityChunkDetail, error) {
	idx, db := s.load()

	entry, ok := idx.Chunks.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	detail := &StabilityChunkDetail{Chunk: entry}
	if result, ok := db.Chunks.Get(id); ok {
		detail.Stability = &result
	}
	return detail, nil
}

func (s *Stability) Raw() json.RawMessage {
	return s.data.Raw(StabilityFile)
}

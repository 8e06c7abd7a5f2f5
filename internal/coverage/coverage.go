package coverage

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rag-dashboard/backend/internal/storage/models"
)

type Overall struct {
	TotalChunks     int     `json:"total_chunks"`
	TestedChunks    int     `json:"tested_chunks"`
	CoveragePercent float64 `json:"coverage_percent"`
	RAGAccuracy     float64 `json:"rag_accuracy"`
	LLMAvgScore     float64 `json:"llm_avg_score"`
}

type CategoryStats struct {
	Total           int     `json:"total"`
	Tested          int     `json:"tested"`
	RAGFound        int     `json:"rag_found"`
	CoveragePercent float64 `json:"coverage_percent"`
	RAGAccuracy     float64 `json:"rag_accuracy"`
}

func (s *CategoryStats) add(tested, found bool) {
	s.Total++
	if tested {
		s.Tested++
	}
	if found {
		s.RAGFound++
	}
}

func (s *CategoryStats) finish() {
	s.CoveragePercent = percent(s.Tested, s.Total)
	s.RAGAccuracy = percent(s.RAGFound, s.Tested)
}

type Stats struct {
	Overall     Overall                                        `json:"overall"`
	ByCategory  *orderedmap.OrderedMap[string, *CategoryStats] `json:"by_category"`
	LastUpdated *string                                        `json:"last_updated"`
}

type TreeChunk struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Preview string `json:"preview"`
}

type Article struct {
	Name   string         `json:"name"`
	Chunks []TreeChunk    `json:"chunks"`
	Stats  *CategoryStats `json:"stats"`
}

type Category struct {
	Name     string         `json:"name"`
	Articles []*Article     `json:"articles"`
	Stats    *CategoryStats `json:"stats"`
}

type TreeTotals struct {
	Total           int     `json:"total"`
	Tested          int     `json:"tested"`
	CoveragePercent float64 `json:"coverage_percent"`
	RAGAccuracy     float64 `json:"rag_accuracy"`
}

type Tree struct {
	Categories []*Category `json:"categories"`
	Stats      TreeTotals  `json:"stats"`
}

type ChunkDetail struct {
	Chunk      IndexEntry      `json:"chunk"`
	TestResult json.RawMessage `json:"test_result"`
}

// LookupEntry is the shape the chat widget shows for a retrieved chunk.
type LookupEntry struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Article  string `json:"article"`
	Text     string `json:"text"`
	Metadata struct {
		Type      string `json:"type"`
		PageTitle string `json:"page_title"`
	} `json:"metadata"`
}

// Coverage answers questions about which indexed chunks the tests reached.
type Coverage struct {
	data *Datasets
}

func NewCoverage(data *Datasets) *Coverage {
	return &Coverage{data: data}
}

func (c *Coverage) load() (*ChunkIndex, *CoverageResults) {
	idx, err := c.data.Index()
	loadOrEmpty(IndexFile, err)
	res, err := c.data.Results()
	loadOrEmpty(ResultsFile, err)
	return idx, res
}

// Stats summarises the results file and tallies every indexed chunk by category.
func (c *Coverage) Stats() *Stats {
	idx, res := c.load()

	byCategory := newOrdered[*CategoryStats]()
	for pair := idx.Chunks.Oldest(); pair != nil; pair = pair.Next() {
		id, entry := pair.Key, pair.Value
		s, ok := byCategory.Get(entry.category())
		if !ok {
			s = &CategoryStats{}
			byCategory.Set(entry.category(), s)
		}
		raw, tested := res.result(id)
		s.add(tested, tested && ragFound(raw))
	}
	for pair := byCategory.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.finish()
	}

	total := idx.TotalChunks
	if res.TotalChunks != nil {
		total = *res.TotalChunks
	}

	return &Stats{
		Overall: Overall{
			TotalChunks:     total,
			TestedChunks:    res.TestedChunks,
			CoveragePercent: res.CoveragePercent,
			RAGAccuracy:     res.RAGAccuracy,
			LLMAvgScore:     res.LLMAvgScore,
		},
		ByCategory:  byCategory,
		LastUpdated: res.LastUpdated,
	}
}

// Tree groups indexed chunks by category and article in index order.
func (c *Coverage) Tree() *Tree {
	idx, res := c.load()

	tree := &Tree{
		Categories: []*Category{},
		Stats: TreeTotals{
			Total:           idx.TotalChunks,
			Tested:          res.TestedChunks,
			CoveragePercent: res.CoveragePercent,
			RAGAccuracy:     res.RAGAccuracy,
		},
	}

	categories := newOrdered[*Category]()
	articles := make(map[*Category]*orderedmap.OrderedMap[string, *Article])

	for pair := idx.Chunks.Oldest(); pair != nil; pair = pair.Next() {
		id, entry := pair.Key, pair.Value

		cat, ok := categories.Get(entry.category())
		if !ok {
			cat = &Category{Name: entry.category(), Articles: []*Article{}, Stats: &CategoryStats{}}
			categories.Set(cat.Name, cat)
			articles[cat] = newOrdered[*Article]()
		}
		art, ok := articles[cat].Get(entry.article())
		if !ok {
			art = &Article{Name: entry.article(), Chunks: []TreeChunk{}, Stats: &CategoryStats{}}
			articles[cat].Set(art.Name, art)
			cat.Articles = append(cat.Articles, art)
		}

		status := models.StatusUntested
		raw, tested := res.result(id)
		found := tested && ragFound(raw)
		switch {
		case found:
			status = models.StatusRAGFound
		case tested:
			status = models.StatusRAGMissed
		}

		cat.Stats.add(tested, found)
		art.Stats.add(tested, found)
		art.Chunks = append(art.Chunks, TreeChunk{ID: id, Status: status, Preview: preview(entry.TextPreview)})
	}

	for pair := categories.Oldest(); pair != nil; pair = pair.Next() {
		cat := pair.Value
		cat.Stats.finish()
		for _, art := range cat.Articles {
			art.Stats.finish()
		}
		tree.Categories = append(tree.Categories, cat)
	}
	return tree
}

// Chunk returns the index entry and stored result of one indexed chunk.
func (c *Coverage) Chunk(id string) (*ChunkDetail, error) {
	idx, res := c.load()

	entry, ok := idx.Chunks.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	detail := &ChunkDetail{Chunk: entry, TestResult: json.RawMessage("null")}
	if raw, ok := res.result(id); ok {
		detail.TestResult = raw
	}
	return detail, nil
}

func (c *Coverage) Raw() json.RawMessage {
	return c.data.Raw(ResultsFile)
}

func (c *Coverage) Index() json.RawMessage {
	return c.data.Raw(IndexFile)
}

// Lookup returns the index entries for ids in request order, skipping unknown ids.
func (c *Coverage) Lookup(ids []string) []LookupEntry {
	idx, err := c.data.Index()
	loadOrEmpty(IndexFile, err)

	out := make([]LookupEntry, 0, len(ids))
	for _, id := range ids {
		entry, ok := idx.Chunks.Get(id)
		if !ok {
			continue
		}
		e := LookupEntry{ID: id, Category: entry.category(), Article: entry.article(), Text: entry.TextPreview}
		e.Metadata.Type = entry.category()
		e.Metadata.PageTitle = entry.article()
		out = append(out, e)
	}
	return out
}

// percent is part/whole*100 rounded to two decimals, and 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength])
}

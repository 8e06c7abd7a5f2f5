package coverage

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/internal/testutil"
)

const indexJSON = `{
  "total_chunks": 5,
  "chunks": {
    "mobs_1":   {"category": "Mobs", "article": "Zombie", "text_preview": "Zombies are hostile"},
    "blocks_1": {"category": "Blocks", "article": "Stone", "text_preview": "Stone is common"},
    "mobs_2":   {"category": "Mobs", "article": "Zombie", "text_preview": "Zombies burn"},
    "mobs_3":   {"category": "Mobs", "article": "Creeper", "text_preview": "Creepers explode"},
    "misc_1":   {"text_preview": ""}
  }
}`

const resultsJSON = `{
  "total_chunks": 5,
  "tested_chunks": 3,
  "coverage_percent": 60.0,
  "rag_accuracy": 66.67,
  "llm_avg_score": 31.5,
  "last_updated": "2026-01-06T03:06:00",
  "results": {
    "mobs_1": {"rag_found_chunk": true, "llm_score": 40},
    "mobs_2": {"rag_found_chunk": false},
    "blocks_1": {"rag_found_chunk": true},
    "ghost": {"rag_found_chunk": true}
  }
}`

func writeDatasets(t *testing.T, files map[string]string) *Datasets {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		testutil.WriteFile(t, dir, name, content)
	}
	return NewDatasets(dir)
}

func TestCoverageStats(t *testing.T) {
	c := NewCoverage(writeDatasets(t, map[string]string{IndexFile: indexJSON, ResultsFile: resultsJSON}))

	stats := c.Stats()
	assert.Equal(t, Overall{TotalChunks: 5, TestedChunks: 3, CoveragePercent: 60, RAGAccuracy: 66.67, LLMAvgScore: 31.5}, stats.Overall)
	require.NotNil(t, stats.LastUpdated)
	assert.Equal(t, "2026-01-06T03:06:00", *stats.LastUpdated)

	assert.Equal(t, []string{"Mobs", "Blocks", DefaultCategory}, keysOf(stats.ByCategory))

	mobs, _ := stats.ByCategory.Get("Mobs")
	assert.Equal(t, &CategoryStats{Total: 3, Tested: 2, RAGFound: 1, CoveragePercent: 66.67, RAGAccuracy: 50}, mobs)

	other, _ := stats.ByCategory.Get(DefaultCategory)
	assert.Equal(t, &CategoryStats{Total: 1}, other, "zero denominators give zero")
}

func TestCoverageStats_NoData(t *testing.T) {
	c := NewCoverage(writeDatasets(t, nil))

	stats := c.Stats()
	assert.Equal(t, Overall{}, stats.Overall)
	assert.Equal(t, 0, stats.ByCategory.Len())
	assert.Nil(t, stats.LastUpdated)

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"overall":{"total_chunks":0,"tested_chunks":0,"coverage_percent":0,"rag_accuracy":0,"llm_avg_score":0},"by_category":{},"last_updated":null}`, string(data))
}

func TestCoverageStats_MalformedTreatedAsEmpty(t *testing.T) {
	c := NewCoverage(writeDatasets(t, map[string]string{IndexFile: indexJSON, ResultsFile: "{broken"}))

	stats := c.Stats()
	assert.Equal(t, 5, stats.Overall.TotalChunks, "falls back to the index total")
	mobs, _ := stats.ByCategory.Get("Mobs")
	assert.Equal(t, 0, mobs.Tested)
}

func TestCoverageTree(t *testing.T) {
	c := NewCoverage(writeDatasets(t, map[string]string{IndexFile: indexJSON, ResultsFile: resultsJSON}))

	tree := c.Tree()
	assert.Equal(t, TreeTotals{Total: 5, Tested: 3, CoveragePercent: 60, RAGAccuracy: 66.67}, tree.Stats)

	require.Len(t, tree.Categories, 3)
	mobs := tree.Categories[0]
	assert.Equal(t, "Mobs", mobs.Name)
	require.Len(t, mobs.Articles, 2)
	assert.Equal(t, "Zombie", mobs.Articles[0].Name)
	assert.Equal(t, "Creeper", mobs.Articles[1].Name)

	want := []TreeChunk{
		{ID: "mobs_1", Status: models.StatusRAGFound, Preview: "Zombies are hostile"},
		{ID: "mobs_2", Status: models.StatusRAGMissed, Preview: "Zombies burn"},
	}
	if diff := cmp.Diff(want, mobs.Articles[0].Chunks); diff != "" {
		t.Errorf("zombie chunks mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, models.StatusUntested, mobs.Articles[1].Chunks[0].Status)
	assert.Equal(t, &CategoryStats{Total: 2, Tested: 2, RAGFound: 1, CoveragePercent: 100, RAGAccuracy: 50}, mobs.Articles[0].Stats)

	other := tree.Categories[2]
	assert.Equal(t, DefaultCategory, other.Name)
	assert.Equal(t, DefaultArticle, other.Articles[0].Name)

	for _, cat := range tree.Categories {
		for _, art := range cat.Articles {
			for _, ch := range art.Chunks {
				assert.NotEqual(t, "ghost", ch.ID, "chunks outside the index never appear")
			}
		}
	}
}

func TestCoverageTree_PreviewCapped(t *testing.T) {
	long := strings.Repeat("ä", 150)
	c := NewCoverage(writeDatasets(t, map[string]string{
		IndexFile: `{"chunks": {"c": {"category": "A", "article": "B", "text_preview": "` + long + `"}}}`,
	}))

	tree := c.Tree()
	assert.Equal(t, strings.Repeat("ä", 100), tree.Categories[0].Articles[0].Chunks[0].Preview)
}

func TestCoverageChunk(t *testing.T) {
	c := NewCoverage(writeDatasets(t, map[string]string{IndexFile: indexJSON, ResultsFile: resultsJSON}))

	d, err := c.Chunk("mobs_1")
	require.NoError(t, err)
	assert.Equal(t, "Zombie", d.Chunk.Article)
	assert.JSONEq(t, `{"rag_found_chunk": true, "llm_score": 40}`, string(d.TestResult))

	d, err = c.Chunk("mobs_3")
	require.NoError(t, err)
	assert.Equal(t, "null", string(d.TestResult))

	_, err = c.Chunk("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCoverageRawAndIndex(t *testing.T) {
	c := NewCoverage(writeDatasets(t, map[string]string{IndexFile: indexJSON, ResultsFile: "not json"}))

	assert.JSONEq(t, indexJSON, string(c.Index()))
	assert.Equal(t, "{}", string(c.Raw()))

	empty := NewCoverage(writeDatasets(t, nil))
	assert.Equal(t, "{}", string(empty.Index()))
}

func TestCoverageLookup(t *testing.T) {
	c := NewCoverage(writeDatasets(t, map[string]string{IndexFile: indexJSON}))

	got := c.Lookup([]string{"mobs_3", "nope", "blocks_1"})
	require.Len(t, got, 2)
	assert.Equal(t, "mobs_3", got[0].ID)
	assert.Equal(t, "Creepers explode", got[0].Text)
	assert.Equal(t, "Mobs", got[0].Metadata.Type)
	assert.Equal(t, "Creeper", got[0].Metadata.PageTitle)
	assert.Equal(t, "blocks_1", got[1].ID)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(0, 0))
	assert.Equal(t, 0.0, percent(5, 0))
	assert.Equal(t, 33.33, percent(1, 3))
	assert.Equal(t, 100.0, percent(4, 4))
}

func TestDatasets_Errors(t *testing.T) {
	d := writeDatasets(t, map[string]string{IndexFile: "[1,2"})

	_, err := d.Index()
	assert.ErrorIs(t, err, ErrMalformedDataset)

	_, err = d.Results()
	assert.ErrorIs(t, err, ErrMissingDataset)
}

func TestCoverageStats_CategoryOrderSurvivesJSON(t *testing.T) {
	c := NewCoverage(writeDatasets(t, map[string]string{IndexFile: indexJSON, ResultsFile: resultsJSON}))

	data, err := json.Marshal(c.Stats())
	require.NoError(t, err)

	body := string(data)
	mobs := strings.Index(body, `"Mobs"`)
	blocks := strings.Index(body, `"Blocks"`)
	other := strings.Index(body, `"`+DefaultCategory+`"`)
	require.True(t, mobs >= 0 && blocks >= 0 && other >= 0, body)
	assert.Less(t, mobs, blocks)
	assert.Less(t, blocks, other)
}

func TestIndex_DriftedEntryIsSkipped(t *testing.T) {
	const drifted = `{
  "total_chunks": 3,
  "chunks": {
    "mobs_1":   {"category": "Mobs", "article": "Zombie", "text_preview": "Zombies are hostile"},
    "bad_1":    {"category": 7, "article": "Broken"},
    "blocks_1": {"category": "Blocks", "article": "Stone", "text_preview": "Stone is common"}
  }
}`
	d := writeDatasets(t, map[string]string{IndexFile: drifted, ResultsFile: resultsJSON})

	idx, err := d.Index()
	require.NoError(t, err)
	assert.Equal(t, 3, idx.TotalChunks)
	assert.Equal(t, []string{"mobs_1", "blocks_1"}, keysOf(idx.Chunks))

	tree := NewCoverage(d).Tree()
	require.Len(t, tree.Categories, 2)
	assert.Equal(t, "Mobs", tree.Categories[0].Name)
	assert.Equal(t, "Blocks", tree.Categories[1].Name)
}

func TestIndex_NullChunks(t *testing.T) {
	d := writeDatasets(t, map[string]string{IndexFile: `{"total_chunks": 0, "chunks": null}`})

	idx, err := d.Index()
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Chunks.Len())
}

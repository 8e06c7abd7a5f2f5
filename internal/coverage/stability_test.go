package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-dashboard/backend/internal/storage/models"
)

const stabilityJSON = `{
  "metadata": {"total_chunks": 5, "last_updated": "2026-01-07T10:00:00"},
  "chunks": {
    "mobs_1": {"category": "Mobs", "status": "stable", "stability": 1.0, "total_runs": 10},
    "mobs_2": {"category": "Mobs", "status": "unstable", "stability": 0.6, "total_runs": 10},
    "blocks_1": {"category": "Blocks", "status": "broken", "stability": 0.0, "total_runs": 4},
    "misc_1": {"category": "Redstone", "status": "stable", "stability": 0.9, "total_runs": 3},
    "ghost": {"category": "Ghost", "status": "stable", "stability": 1.0, "total_runs": 1}
  }
}`

func TestStabilityStats(t *testing.T) {
	s := NewStability(writeDatasets(t, map[string]string{IndexFile: indexJSON, StabilityFile: stabilityJSON}))

	stats := s.Stats()
	assert.Equal(t, StabilityCounts{
		Total: 5, Tested: 4, Stable: 2, Unstable: 1, Broken: 1, Untested: 1,
		CoveragePercent: 80, StabilityPercent: 50,
	}, stats.Overall)
	require.NotNil(t, stats.LastUpdated)

	// misc_1 has no index category, so the recorded one is used.
	assert.Equal(t, []string{"Mobs", "Blocks", "Redstone"}, keysOf(stats.ByCategory))

	mobs, _ := stats.ByCategory.Get("Mobs")
	assert.Equal(t, &StabilityCounts{
		Total: 3, Tested: 2, Stable: 1, Unstable: 1, Untested: 1,
		CoveragePercent: 66.67, StabilityPercent: 50,
	}, mobs)

	blocks, _ := stats.ByCategory.Get("Blocks")
	assert.Equal(t, 0.0, blocks.StabilityPercent)
}

func TestStabilityStats_NoData(t *testing.T) {
	s := NewStability(writeDatasets(t, map[string]string{IndexFile: indexJSON}))

	stats := s.Stats()
	assert.Equal(t, 5, stats.Overall.Untested)
	assert.Equal(t, 0.0, stats.Overall.CoveragePercent)
	assert.Equal(t, 0.0, stats.Overall.StabilityPercent)
}

func TestStabilityCategories(t *testing.T) {
	s := NewStability(writeDatasets(t, map[string]string{
		IndexFile:     indexJSON,
		StabilityFile: stabilityJSON,
		ResultsFile:   resultsJSON,
	}))

	tree := s.Categories()
	require.Len(t, tree.Categories, 3)
	assert.Equal(t, 5, tree.Stats.Total)

	mobs := tree.Categories[0]
	require.Len(t, mobs.Articles, 2)
	zombie := mobs.Articles[0]
	require.Len(t, zombie.Chunks, 2)

	assert.Equal(t, models.ChunkRecord{
		ID:          "mobs_1",
		Category:    "Mobs",
		Article:     "Zombie",
		TextPreview: "Zombies are hostile",
		Result:      models.TestResult{RAGFoundChunk: true, TotalRuns: 10, Stability: 1.0, Status: models.StatusStable},
	}, zombie.Chunks[0])

	creeper := mobs.Articles[1].Chunks[0]
	assert.Equal(t, models.StatusUntested, creeper.Result.Status)
	assert.Equal(t, 0, creeper.Result.TotalRuns)
}

func TestStabilityChunk(t *testing.T) {
	s := NewStability(writeDatasets(t, map[string]string{IndexFile: indexJSON, StabilityFile: stabilityJSON}))

	d, err := s.Chunk("mobs_2")
	require.NoError(t, err)
	require.NotNil(t, d.Stability)
	assert.Equal(t, models.StatusUnstable, d.Stability.Status)

	d, err = s.Chunk("mobs_3")
	require.NoError(t, err)
	assert.Nil(t, d.Stability)

	_, err = s.Chunk("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStabilityRaw(t *testing.T) {
	s := NewStability(writeDatasets(t, map[string]string{StabilityFile: stabilityJSON}))
	assert.JSONEq(t, stabilityJSON, string(s.Raw()))
}

func TestStabilityStats_DriftedEntryIsSkipped(t *testing.T) {
	const drifted = `{
  "metadata": {"total_chunks": 5},
  "chunks": {
    "mobs_1": {"category": "Mobs", "status": "stable", "stability": 1.0, "total_runs": 10},
    "mobs_2": {"category": "Mobs", "status": "unstable", "stability": 0.6, "total_runs": "ten"}
  }
}`
	s := NewStability(writeDatasets(t, map[string]string{IndexFile: indexJSON, StabilityFile: drifted}))

	stats := s.Stats()
	assert.Equal(t, 1, stats.Overall.Stable)
	assert.Equal(t, 0, stats.Overall.Unstable, "the drifted entry counts as untested")
	assert.Equal(t, 4, stats.Overall.Untested)

	detail, err := s.Chunk("mobs_1")
	require.NoError(t, err)
	require.NotNil(t, detail.Stability)
	assert.Equal(t, 10, detail.Stability.TotalRuns)
}

// Package coverage rolls chunk-level retrieval results up into category and
// article summaries.
package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/pkg/logger"
)

const (
	IndexFile     = "chunks_index.json"
	ResultsFile   = "coverage_results.json"
	StabilityFile = "stability_db.json"
)

const (
	DefaultCategory = "Other"
	DefaultArticle  = "Unknown"
	previewLength   = 100
)

var (
	ErrNotFound         = errors.New("chunk not found")
	ErrMissingDataset   = errors.New("dataset missing")
	ErrMalformedDataset = errors.New("dataset malformed")
)

type IndexEntry struct {
	Category    string `json:"category"`
	Article     string `json:"article"`
	TextPreview string `json:"text_preview"`
}

func (e IndexEntry) category() string {
	if e.Category == "" {
		return DefaultCategory
	}
	return e.Category
}

func (e IndexEntry) article() string {
	if e.Article == "" {
		return DefaultArticle
	}
	return e.Article
}

type ChunkIndex struct {
	TotalChunks int
	Chunks      *orderedmap.OrderedMap[string, IndexEntry]
}

type CoverageResults struct {
	TotalChunks     *int                       `json:"total_chunks"`
	TestedChunks    int                        `json:"tested_chunks"`
	CoveragePercent float64                    `json:"coverage_percent"`
	RAGAccuracy     float64                    `json:"rag_accuracy"`
	LLMAvgScore     float64                    `json:"llm_avg_score"`
	LastUpdated     *string                    `json:"last_updated"`
	Results         map[string]json.RawMessage `json:"results"`
}

// result returns the stored result for id; a JSON null counts as absent.
func (c *CoverageResults) result(id string) (json.RawMessage, bool) {
	raw, ok := c.Results[id]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func ragFound(raw json.RawMessage) bool {
	var r struct {
		RAGFoundChunk bool `json:"rag_found_chunk"`
	}
	return json.Unmarshal(raw, &r) == nil && r.RAGFoundChunk
}

type StabilityEntry struct {
	Category  string  `json:"category,omitempty"`
	Status    string  `json:"status"`
	Stability float64 `json:"stability"`
	TotalRuns int     `json:"total_runs"`
}

type StabilityMetadata struct {
	TotalChunks int     `json:"total_chunks"`
	LastUpdated *string `json:"last_updated"`
}

type StabilityDB struct {
	Metadata StabilityMetadata
	Chunks   *orderedmap.OrderedMap[string, StabilityEntry]
}

// Datasets reads the coverage JSON files from one directory.
type Datasets struct {
	dir string
}

func NewDatasets(dir string) *Datasets {
	return &Datasets{dir: dir}
}

func (d *Datasets) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingDataset, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (d *Datasets) decode(name string, v interface{}) error {
	data, err := d.read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedDataset, name, err)
	}
	return nil
}

// Raw returns the file verbatim, or an empty object when it is missing or not valid JSON.
func (d *Datasets) Raw(name string) json.RawMessage {
	data, err := d.read(name)
	if err == nil && !json.Valid(data) {
		err = fmt.Errorf("%w: %s", ErrMalformedDataset, name)
	}
	if err != nil {
		logUnavailable(name, err)
		return json.RawMessage("{}")
	}
	return json.RawMessage(data)
}

func (d *Datasets) Index() (*ChunkIndex, error) {
	var wire struct {
		TotalChunks int                                             `json:"total_chunks"`
		Chunks      *orderedmap.OrderedMap[string, json.RawMessage] `json:"chunks"`
	}
	if err := d.decode(IndexFile, &wire); err != nil {
		return &ChunkIndex{Chunks: newOrdered[IndexEntry]()}, err
	}
	return &ChunkIndex{
		TotalChunks: wire.TotalChunks,
		Chunks:      decodeEntries[IndexEntry](IndexFile, wire.Chunks),
	}, nil
}

func (d *Datasets) Results() (*CoverageResults, error) {
	res := &CoverageResults{}
	if err := d.decode(ResultsFile, res); err != nil {
		return &CoverageResults{}, err
	}
	return res, nil
}

func (d *Datasets) Stability() (*StabilityDB, error) {
	var wire struct {
		Metadata StabilityMetadata                               `json:"metadata"`
		Chunks   *orderedmap.OrderedMap[string, json.RawMessage] `json:"chunks"`
	}
	if err := d.decode(StabilityFile, &wire); err != nil {
		return &StabilityDB{Chunks: newOrdered[StabilityEntry]()}, err
	}
	return &StabilityDB{
		Metadata: wire.Metadata,
		Chunks:   decodeEntries[StabilityEntry](StabilityFile, wire.Chunks),
	}, nil
}

// loadOrEmpty logs why a dataset could not be used; callers carry on with the empty value.
func loadOrEmpty(name string, err error) {
	if err != nil {
		logUnavailable(name, err)
	}
}

func logUnavailable(name string, err error) {
	if errors.Is(err, ErrMissingDataset) {
		logger.Debug("Dataset not present", zap.String("file", name))
		return
	}
	logger.Warn("Dataset unusable", zap.String("file", name), zap.Error(err))
}

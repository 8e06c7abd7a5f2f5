// Package ragtests serves the retrieval-only test runs written by the evaluation pipeline.
package ragtests

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/pkg/logger"
)

const summaryFile = "summary.json"

var ErrNotFound = errors.New("rag test not found")

type Session struct {
	Timestamp      string `json:"timestamp"`
	QuestionsCount int    `json:"questions_count"`
	TotalRuns      int    `json:"total_runs"`
}

type Store struct {
	resultsDir string
	dynamicDir string
}

func NewStore(resultsDir, dynamicDir string) *Store {
	return &Store{resultsDir: resultsDir, dynamicDir: dynamicDir}
}

type resultFile struct {
	path    string
	modTime time.Time
}

func (s *Store) files() ([]resultFile, error) {
	entries, err := os.ReadDir(s.resultsDir)
	if err != nil {
		return nil, err
	}

	files := make([]resultFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, resultFile{path: filepath.Join(s.resultsDir, entry.Name()), modTime: info.ModTime()})
	}
	return files, nil
}

// List returns every readable result document, most recently modified first.
func (s *Store) List() []json.RawMessage {
	out := []json.RawMessage{}

	files, err := s.files()
	if err != nil {
		logger.Debug("RAG results directory unavailable", zap.String("dir", s.resultsDir), zap.Error(err))
		return out
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	for _, f := range files {
		data, err := readJSON(f.path)
		if err != nil {
			logger.Warn("Skipping RAG test result", zap.String("file", f.path), zap.Error(err))
			continue
		}
		out = append(out, data)
	}
	return out
}

// Get finds <id>.json, or else the first result whose name contains id.
func (s *Store) Get(id string) (json.RawMessage, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	path := filepath.Join(s.resultsDir, id+".json")
	if _, err := os.Stat(path); err != nil {
		path = ""
		files, err := s.files()
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
		for _, f := range files {
			if strings.Contains(strings.TrimSuffix(filepath.Base(f.path), ".json"), id) {
				path = f.path
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
	}

	return readJSON(path)
}

// Sessions lists dynamic test sessions that have a readable summary, newest name first.
func (s *Store) Sessions() []Session {
	out := []Session{}

	entries, err := os.ReadDir(s.dynamicDir)
	if err != nil {
		logger.Debug("Dynamic sessions directory unavailable", zap.String("dir", s.dynamicDir), zap.Error(err))
		return out
	}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if !entry.IsDir() {
			continue
		}
		data, err := readJSON(filepath.Join(s.dynamicDir, entry.Name(), summaryFile))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("Skipping dynamic session", zap.String("session", entry.Name()), zap.Error(err))
			}
			continue
		}

		var summary struct {
			QuestionsCount int `json:"questions_count"`
			TotalRuns      int `json:"total_runs"`
		}
		if err := json.Unmarshal(data, &summary); err != nil {
			logger.Warn("Skipping dynamic session", zap.String("session", entry.Name()), zap.Error(err))
			continue
		}
		out = append(out, Session{
			Timestamp:      entry.Name(),
			QuestionsCount: summary.QuestionsCount,
			TotalRuns:      summary.TotalRuns,
		})
	}
	return out
}

// Session returns the full summary document of one dynamic session.
func (s *Store) Session(timestamp string) (json.RawMessage, error) {
	if timestamp == "" || strings.ContainsAny(timestamp, `/\`) || strings.Contains(timestamp, "..") {
		return nil, fmt.Errorf("%w: session %q", ErrNotFound, timestamp)
	}

	dir := filepath.Join(s.dynamicDir, timestamp)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: session %q", ErrNotFound, timestamp)
	}

	data, err := readJSON(filepath.Join(dir, summaryFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: summary of session %q", ErrNotFound, timestamp)
	}
	return data, err
}

func readJSON(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON in %s", filepath.Base(path))
	}
	return json.RawMessage(data), nil
}

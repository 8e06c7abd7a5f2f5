package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/cache/memory"
	"github.com/rag-dashboard/backend/internal/ingestion"
	"github.com/rag-dashboard/backend/internal/metrics"
	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/pkg/logger"
	"github.com/rag-dashboard/backend/pkg/utils"
)

var ErrNotFound = errors.New("report not found")

// Store memoises extraction results by file fingerprint.
type Store interface {
	GetReport(ctx context.Context, fingerprint string) (*models.Report, bool, error)
	SetReport(ctx context.Context, fingerprint string, report *models.Report) error
	Purge(ctx context.Context) error
}

// candidateExtensions are tried in order when resolving an id to a file.
var candidateExtensions = []string{".html", "", ".htm"}

type Repository struct {
	dir       string
	extractor *ingestion.Extractor
	store     Store
	storeType string
}

// NewRepository serves reports from dir. A nil store falls back to process memory.
func NewRepository(dir string, extractor *ingestion.Extractor, store Store, storeType string) *Repository {
	if extractor == nil {
		extractor = ingestion.NewExtractor()
	}
	if store == nil {
		store = memory.NewStore()
		storeType = "memory"
	}
	return &Repository{
		dir:       dir,
		extractor: extractor,
		store:     store,
		storeType: storeType,
	}
}

func (r *Repository) Dir() string {
	return r.dir
}

// Files lists every report document in name order.
func (r *Repository) Files() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".html") {
			continue
		}
		files = append(files, filepath.Join(r.dir, entry.Name()))
	}
	return files, nil
}

// ValidID reports whether id can name a file directly inside the reports directory.
func ValidID(id string) bool {
	if id == "" || id == "." || strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// Resolve maps a report id to its file path.
func (r *Repository) Resolve(id string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	for _, ext := range candidateExtensions {
		path := filepath.Join(r.dir, id+ext)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Load extracts the report at path, reusing a cached result while the file is unchanged.
func (r *Repository) Load(ctx context.Context, path string) (*models.Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat report: %w", err)
	}

	fingerprint := utils.HashParts(path, strconv.FormatInt(info.Size(), 10), strconv.FormatInt(info.ModTime().UnixNano(), 10))

	cached, ok, err := r.store.GetReport(ctx, fingerprint)
	if err != nil {
		logger.Warn("Report cache read failed", zap.String("file", path), zap.Error(err))
	}
	if ok {
		metrics.CacheHits.WithLabelValues(r.storeType).Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues(r.storeType).Inc()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	report := r.extractor.Extract(filepath.Base(path), content)
	if report.IsParseError() {
		metrics.ReportsParsed.WithLabelValues("parse_error").Inc()
	} else {
		metrics.ReportsParsed.WithLabelValues("ok").Inc()
	}

	if err := r.store.SetReport(ctx, fingerprint, report); err != nil {
		logger.Warn("Report cache write failed", zap.String("file", path), zap.Error(err))
	}

	return report, nil
}

// Get loads a report by id.
func (r *Repository) Get(ctx context.Context, id string) (*models.Report, error) {
	path, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, path)
}

// Purge forgets every cached extraction.
func (r *Repository) Purge(ctx context.Context) error {
	return r.store.Purge(ctx)
}

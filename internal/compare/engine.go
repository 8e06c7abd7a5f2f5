// Package compare lines up the questions of several reports side by side.
package compare

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/reports"
	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/pkg/logger"
)

var ErrUnknownMode = errors.New("unknown comparison mode")

type Result struct {
	Mode      string              `json:"mode"`
	Reports   []models.ReportMeta `json:"reports"`
	Questions []Row               `json:"questions"`
}

type Engine struct {
	repo       *reports.Repository
	strategies map[string]Strategy
}

func NewEngine(repo *reports.Repository, strategies ...Strategy) *Engine {
	if len(strategies) == 0 {
		strategies = []Strategy{IndexAligned{}, TextKeyed{}}
	}
	e := &Engine{repo: repo, strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		e.strategies[s.Name()] = s
	}
	return e
}

// Compare aligns the requested reports. Ids that do not resolve are skipped.
func (e *Engine) Compare(ctx context.Context, ids []string, mode string) (*Result, error) {
	if mode == "" {
		mode = ModeIndex
	}
	strategy, ok := e.strategies[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	loaded := make([]*models.Report, 0, len(ids))
	for _, id := range ids {
		r, err := e.repo.Get(ctx, id)
		if err != nil {
			logger.Debug("Skipping report in comparison", zap.String("report_id", id), zap.Error(err))
			continue
		}
		loaded = append(loaded, r)
	}

	metas := make([]models.ReportMeta, len(loaded))
	for i, r := range loaded {
		metas[i] = r.ReportMeta
	}

	rows := strategy.Align(loaded)
	if rows == nil {
		rows = []Row{}
	}

	return &Result{Mode: strategy.Name(), Reports: metas, Questions: rows}, nil
}

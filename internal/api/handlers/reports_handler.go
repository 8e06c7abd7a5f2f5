package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/catalog"
	"github.com/rag-dashboard/backend/internal/compare"
	"github.com/rag-dashboard/backend/internal/middleware/validation"
	"github.com/rag-dashboard/backend/internal/reports"
	"github.com/rag-dashboard/backend/pkg/logger"
)

type ReportsHandler struct {
	catalog      *catalog.Catalog
	repo         *reports.Repository
	engine       *compare.Engine
	defaultLimit int
}

func NewReportsHandler(cat *catalog.Catalog, repo *reports.Repository, engine *compare.Engine, defaultLimit int) *ReportsHandler {
	if defaultLimit <= 0 {
		defaultLimit = catalog.DefaultLimit
	}
	return &ReportsHandler{
		catalog:      cat,
		repo:         repo,
		engine:       engine,
		defaultLimit: defaultLimit,
	}
}

func (h *ReportsHandler) ListReports(c *fiber.Ctx) error {
	offset, limit, err := validation.Pagination(c, h.defaultLimit)
	if err != nil {
		return badRequest(c, err)
	}
	chunks, err := validation.OptionalInt(c, "chunks")
	if err != nil {
		return badRequest(c, err)
	}
	minScore, err := validation.OptionalFloat(c, "min_score")
	if err != nil {
		return badRequest(c, err)
	}

	result := h.catalog.List(c.UserContext(), catalog.ListQuery{
		Offset:   offset,
		Limit:    limit,
		Model:    c.Query("model"),
		Chunks:   chunks,
		MinScore: minScore,
	})
	return c.JSON(result)
}

func (h *ReportsHandler) GetFilters(c *fiber.Ctx) error {
	return c.JSON(h.catalog.Filters(c.UserContext()))
}

func (h *ReportsHandler) CompareReports(c *fiber.Ctx) error {
	ids := validation.IDList(c.Query("ids"))
	if len(ids) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ids is required",
		})
	}

	result, err := h.engine.Compare(c.UserContext(), ids, c.Query("mode"))
	if err != nil {
		if errors.Is(err, compare.ErrUnknownMode) {
			return badRequest(c, err)
		}
		logger.Error("Failed to compare reports", zap.Strings("ids", ids), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compare reports",
		})
	}

	return c.JSON(result)
}

func (h *ReportsHandler) GetReport(c *fiber.Ctx) error {
	id := c.Params("id")

	report, err := h.repo.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, reports.ErrNotFound) {
			return notFound(c, "Report not found")
		}
		logger.Error("Failed to load report", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load report",
		})
	}

	return c.JSON(report)
}

// InvalidateCache drops the catalog snapshot and every memoised parse result.
func (h *ReportsHandler) InvalidateCache(c *fiber.Ctx) error {
	h.catalog.Invalidate()
	if err := h.repo.Purge(c.UserContext()); err != nil {
		logger.Warn("Failed to purge parse cache", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"status": "invalidated",
	})
}

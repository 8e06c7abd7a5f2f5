package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/rag-dashboard/backend/internal/coverage"
)

// CoverageHandler serves the coverage map and stability views. Missing or
// malformed datasets yield empty structures, never errors.
type CoverageHandler struct {
	coverage  *coverage.Coverage
	stability *coverage.Stability
}

func NewCoverageHandler(cov *coverage.Coverage, stab *coverage.Stability) *CoverageHandler {
	return &CoverageHandler{
		coverage:  cov,
		stability: stab,
	}
}

func (h *CoverageHandler) GetCoverage(c *fiber.Ctx) error {
	return rawJSON(c, h.coverage.Raw())
}

func (h *CoverageHandler) GetCoverageStats(c *fiber.Ctx) error {
	return c.JSON(h.coverage.Stats())
}

func (h *CoverageHandler) GetChunksIndex(c *fiber.Ctx) error {
	return rawJSON(c, h.coverage.Index())
}

func (h *CoverageHandler) GetCoverageTree(c *fiber.Ctx) error {
	return c.JSON(h.coverage.Tree())
}

func (h *CoverageHandler) GetCoverageChunk(c *fiber.Ctx) error {
	detail, err := h.coverage.Chunk(c.Params("id"))
	if errors.Is(err, coverage.ErrNotFound) {
		return notFound(c, "Chunk not found")
	}
	return c.JSON(detail)
}

func (h *CoverageHandler) GetStability(c *fiber.Ctx) error {
	return rawJSON(c, h.stability.Raw())
}

func (h *CoverageHandler) GetStabilityStats(c *fiber.Ctx) error {
	return c.JSON(h.stability.Stats())
}

func (h *CoverageHandler) GetStabilityCategories(c *fiber.Ctx) error {
	return c.JSON(h.stability.Categories())
}

func (h *CoverageHandler) GetStabilityChunk(c *fiber.Ctx) error {
	detail, err := h.stability.Chunk(c.Params("id"))
	if errors.Is(err, coverage.ErrNotFound) {
		return notFound(c, "Chunk not found")
	}
	return c.JSON(detail)
}

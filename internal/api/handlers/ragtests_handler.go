package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/ragtests"
	"github.com/rag-dashboard/backend/pkg/logger"
)

type RAGTestsHandler struct {
	store *ragtests.Store
}

func NewRAGTestsHandler(store *ragtests.Store) *RAGTestsHandler {
	return &RAGTestsHandler{
		store: store,
	}
}

func (h *RAGTestsHandler) ListTests(c *fiber.Ctx) error {
	return c.JSON(h.store.List())
}

func (h *RAGTestsHandler) GetTest(c *fiber.Ctx) error {
	id := c.Params("id")

	data, err := h.store.Get(id)
	if err != nil {
		return h.lookupError(c, err, "RAG test not found", zap.String("id", id))
	}
	return rawJSON(c, data)
}

func (h *RAGTestsHandler) ListSessions(c *fiber.Ctx) error {
	return c.JSON(h.store.Sessions())
}

func (h *RAGTestsHandler) GetSession(c *fiber.Ctx) error {
	ts := c.Params("timestamp")

	data, err := h.store.Session(ts)
	if err != nil {
		return h.lookupError(c, err, "Session not found", zap.String("timestamp", ts))
	}
	return rawJSON(c, data)
}

func (h *RAGTestsHandler) lookupError(c *fiber.Ctx, err error, notFoundMsg string, field zap.Field) error {
	if errors.Is(err, ragtests.ErrNotFound) {
		return notFound(c, notFoundMsg)
	}
	logger.Error("Failed to read RAG test document", field, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to read test document",
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/coverage"
	"github.com/rag-dashboard/backend/internal/middleware/validation"
	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/pkg/logger"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// Journal is the interaction and feedback log behind the chat widget.
type Journal interface {
	InsertInteraction(i *models.Interaction) error
	StoreFeedback(f *models.Feedback) error
	Stats() (*models.JournalStats, error)
	Interactions(limit int) ([]models.Interaction, error)
	Feedback(limit int) ([]models.Feedback, error)
}

type ChatConfig struct {
	ServerConfigPath string
	TunnelURL        string
	BackendAddr      string
}

type ChatHandler struct {
	journal  Journal
	coverage *coverage.Coverage
	cfg      ChatConfig
}

// NewChatHandler builds the widget endpoints. journal may be nil when journaling is disabled.
func NewChatHandler(journal Journal, cov *coverage.Coverage, cfg ChatConfig) *ChatHandler {
	return &ChatHandler{
		journal:  journal,
		coverage: cov,
		cfg:      cfg,
	}
}

func (h *ChatHandler) readServerConfig() (map[string]interface{}, error) {
	if h.cfg.ServerConfigPath == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(h.cfg.ServerConfigPath)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

func (h *ChatHandler) GetServerConfig(c *fiber.Ctx) error {
	cfg, err := h.readServerConfig()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound(c, "Server config not found")
		}
		logger.Error("Failed to read server config", zap.String("path", h.cfg.ServerConfigPath), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read server config",
		})
	}
	return c.JSON(cfg)
}

// GetChatConfig returns the inference server settings together with where the widget should connect.
func (h *ChatHandler) GetChatConfig(c *fiber.Ctx) error {
	cfg, err := h.readServerConfig()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Ignoring unreadable server config", zap.String("path", h.cfg.ServerConfigPath), zap.Error(err))
		}
		cfg = map[string]interface{}{}
	}
	cfg["tunnel_url"] = h.cfg.TunnelURL
	cfg["backend"] = h.cfg.BackendAddr
	return c.JSON(cfg)
}

func (h *ChatHandler) GetChunks(c *fiber.Ctx) error {
	return c.JSON(h.coverage.Lookup(validation.IDList(c.Query("ids"))))
}

type feedbackRequest struct {
	SessionID       string   `json:"session_id"`
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	Rating          string   `json:"rating"`
	IsPositive      *bool    `json:"is_positive"`
	Comment         string   `json:"comment"`
	FeedbackText    string   `json:"feedback_text"`
	SuggestedAnswer string   `json:"suggested_answer"`
	RAGChunks       []string `json:"rag_chunks"`
	RAGChunkIDs     []string `json:"rag_chunk_ids"`
}

func (r feedbackRequest) rating() (string, bool) {
	switch r.Rating {
	case models.RatingPositive, models.RatingNegative:
		return r.Rating, true
	case "":
		if r.IsPositive == nil {
			return "", false
		}
		if *r.IsPositive {
			return models.RatingPositive, true
		}
		return models.RatingNegative, true
	}
	return "", false
}

func (h *ChatHandler) SubmitFeedback(c *fiber.Ctx) error {
	if h.journal == nil {
		return journalDisabled(c)
	}

	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	rating, ok := req.rating()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "rating must be positive or negative",
		})
	}
	if req.Question == "" && req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "question or answer is required",
		})
	}

	fb := &models.Feedback{
		SessionID:       req.SessionID,
		Question:        req.Question,
		Answer:          req.Answer,
		Rating:          rating,
		Comment:         firstNonEmpty(req.Comment, req.FeedbackText),
		SuggestedAnswer: req.SuggestedAnswer,
		RAGChunks:       req.RAGChunks,
	}
	if len(fb.RAGChunks) == 0 {
		fb.RAGChunks = req.RAGChunkIDs
	}

	if err := h.journal.StoreFeedback(fb); err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"id":     fb.ID,
	})
}

func (h *ChatHandler) GetStats(c *fiber.Ctx) error {
	if h.journal == nil {
		return c.JSON(&models.JournalStats{})
	}

	stats, err := h.journal.Stats()
	if err != nil {
		logger.Error("Failed to read journal stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read journal stats",
		})
	}
	return c.JSON(stats)
}

func (h *ChatHandler) GetInteractions(c *fiber.Ctx) error {
	if h.journal == nil {
		return journalDisabled(c)
	}
	limit, err := logLimit(c)
	if err != nil {
		return badRequest(c, err)
	}

	items, err := h.journal.Interactions(limit)
	if err != nil {
		logger.Error("Failed to read interactions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read interactions",
		})
	}
	return c.JSON(items)
}

func (h *ChatHandler) GetFeedback(c *fiber.Ctx) error {
	if h.journal == nil {
		return journalDisabled(c)
	}
	limit, err := logLimit(c)
	if err != nil {
		return badRequest(c, err)
	}

	items, err := h.journal.Feedback(limit)
	if err != nil {
		logger.Error("Failed to read feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read feedback",
		})
	}
	return c.JSON(items)
}

func logLimit(c *fiber.Ctx) (int, error) {
	_, limit, err := validation.Pagination(c, defaultLogLimit)
	if err != nil {
		return 0, err
	}
	if limit == 0 {
		limit = defaultLogLimit
	}
	return min(limit, maxLogLimit), nil
}

func journalDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "Interaction journal is disabled",
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

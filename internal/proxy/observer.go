package proxy

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/pkg/logger"
)

// agentStateStreamingEnd marks the backend message carrying the complete answer.
const agentStateStreamingEnd = 5

type Journal interface {
	InsertInteraction(i *models.Interaction) error
}

// JournalObserver records user questions and completed answers of one chat session.
type JournalObserver struct {
	journal   Journal
	sessionID string
}

func NewJournalObserver(journal Journal, sessionID string) *JournalObserver {
	return &JournalObserver{journal: journal, sessionID: sessionID}
}

func (o *JournalObserver) ClientMessage(payload []byte) {
	var msg struct {
		AgentMessage *struct {
			Message string `json:"message"`
		} `json:"agent_message"`
	}
	if json.Unmarshal(payload, &msg) != nil || msg.AgentMessage == nil || msg.AgentMessage.Message == "" {
		return
	}

	o.record(models.DirectionClientToServer, models.InteractionUserQuestion, map[string]interface{}{
		"question": msg.AgentMessage.Message,
	})
}

func (o *JournalObserver) BackendMessage(payload []byte) {
	var msg struct {
		Agent *struct {
			State     int             `json:"state"`
			Response  string          `json:"response"`
			RAGIDs    json.RawMessage `json:"rag_ids"`
			RAGScores json.RawMessage `json:"rag_scores"`
		} `json:"agent"`
	}
	if json.Unmarshal(payload, &msg) != nil || msg.Agent == nil {
		return
	}
	if msg.Agent.State != agentStateStreamingEnd || msg.Agent.Response == "" {
		return
	}

	o.record(models.DirectionServerToClient, models.InteractionLLMResponse, map[string]interface{}{
		"response":   msg.Agent.Response,
		"rag_ids":    orEmptyList(msg.Agent.RAGIDs),
		"rag_scores": orEmptyList(msg.Agent.RAGScores),
	})
}

func (o *JournalObserver) record(direction, kind string, content map[string]interface{}) {
	data, err := json.Marshal(content)
	if err != nil {
		return
	}

	err = o.journal.InsertInteraction(&models.Interaction{
		SessionID: o.sessionID,
		Direction: direction,
		Type:      kind,
		Content:   string(data),
	})
	if err != nil {
		logger.Warn("Failed to journal interaction",
			zap.String("session_id", o.sessionID),
			zap.String("type", kind),
			zap.Error(err),
		)
	}
}

func orEmptyList(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("[]")
	}
	return raw
}

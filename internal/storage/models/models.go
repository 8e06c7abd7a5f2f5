package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxQuestionScore is the per-question maximum awarded by the evaluation pipeline.
const MaxQuestionScore = 50

const (
	UnknownModel    = "Unknown"
	ParseErrorModel = "Parse Error"
)

// ReportMeta is a report without its question list, as served by listings.
type ReportMeta struct {
	ID             string                 `json:"id"`
	Filename       string                 `json:"filename"`
	Model          string                 `json:"model"`
	Date           string                 `json:"date"`
	Time           string                 `json:"time"`
	ScorePercent   float64                `json:"score_percent"`
	QuestionsCount int                    `json:"questions_count"`
	ServerConfig   map[string]interface{} `json:"server_config"`
	TestConfig     map[string]interface{} `json:"test_config"`
	Error          string                 `json:"error,omitempty"`
}

type Report struct {
	ReportMeta
	Questions []Question `json:"questions"`
}

type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Score    int    `json:"score"`
}

func (q Question) ScorePercent() float64 {
	return float64(q.Score) / MaxQuestionScore * 100
}

// chunkCountKeys are the server_config keys that have carried the retrieval size.
var chunkCountKeys = []string{"chunks", "rag_chunks", "num_chunks", "max_chunks", "top_k"}

// ChunkCount returns the configured number of retrieved chunks, if the report records one.
func (m ReportMeta) ChunkCount() (int, bool) {
	for _, key := range chunkCountKeys {
		raw, ok := m.ServerConfig[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			if v == math.Trunc(v) {
				return int(v), true
			}
		case int:
			return v, true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func (m ReportMeta) IsParseError() bool {
	return m.Model == ParseErrorModel
}

func NewReport(id, filename string) *Report {
	return &Report{
		ReportMeta: ReportMeta{
			ID:           id,
			Filename:     filename,
			Model:        UnknownModel,
			ServerConfig: map[string]interface{}{},
			TestConfig:   map[string]interface{}{},
		},
		Questions: []Question{},
	}
}

// NewParseErrorReport is the placeholder returned when a document cannot be extracted.
func NewParseErrorReport(id, filename string, cause error) *Report {
	r := NewReport(id, filename)
	r.Model = ParseErrorModel
	if cause != nil {
		r.Error = cause.Error()
	} else {
		r.Error = "unknown parse failure"
	}
	return r
}

type FilterFacets struct {
	Models []string `json:"models"`
	Chunks []int    `json:"chunks"`
}

// Coverage and stability chunk statuses.
const (
	StatusUntested  = "untested"
	StatusRAGFound  = "rag_found"
	StatusRAGMissed = "rag_missed"
	StatusStable    = "stable"
	StatusUnstable  = "unstable"
	StatusBroken    = "broken"
)

type ChunkRecord struct {
	ID          string     `json:"id"`
	Category    string     `json:"category"`
	Article     string     `json:"article"`
	TextPreview string     `json:"text_preview"`
	Result      TestResult `json:"test_result"`
}

type TestResult struct {
	RAGFoundChunk bool    `json:"rag_found_chunk"`
	TotalRuns     int     `json:"total_runs"`
	Stability     float64 `json:"stability"`
	Status        string  `json:"status"`
}

// Interaction is one chat message observed by the proxy. Content holds JSON.
type Interaction struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

const (
	DirectionClientToServer = "client_to_server"
	DirectionServerToClient = "server_to_client"

	InteractionUserQuestion = "user_question"
	InteractionLLMResponse  = "llm_response"

	RatingPositive = "positive"
	RatingNegative = "negative"
)

type Feedback struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Rating    string    `json:"rating"`
	Comment   string    `json:"comment"`
	RAGChunks []string  `json:"rag_chunks"`
	CreatedAt time.Time `json:"timestamp"`

	SuggestedAnswer string `json:"suggested_answer,omitempty"`
}

type JournalStats struct {
	TotalSessions    int `json:"total_sessions"`
	TotalMessages    int `json:"total_messages"`
	TotalFeedback    int `json:"total_feedback"`
	PositiveFeedback int `json:"positive_feedback"`
	NegativeFeedback int `json:"negative_feedback"`
}

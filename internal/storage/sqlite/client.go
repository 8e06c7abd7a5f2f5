package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/pkg/logger"
)

// Client journals chat interactions and user feedback.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		rating TEXT NOT NULL,
		comment TEXT,
		suggested_answer TEXT,
		rag_chunks TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_rating ON feedback(rating);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertInteraction(i *models.Interaction) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}

	query := `INSERT INTO interactions (session_id, direction, type, content, created_at) VALUES (?, ?, ?, ?, ?)`

	res, err := c.db.Exec(query, i.SessionID, i.Direction, i.Type, i.Content, i.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		i.ID = id
	}

	logger.Debug("Interaction recorded",
		zap.String("session_id", i.SessionID),
		zap.String("type", i.Type),
	)
	return nil
}

func (c *Client) StoreFeedback(f *models.Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	chunks := f.RAGChunks
	if chunks == nil {
		chunks = []string{}
	}
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to encode rag chunks: %w", err)
	}

	query := `INSERT INTO feedback (session_id, question, answer, rating, comment, suggested_answer, rag_chunks, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := c.db.Exec(query, f.SessionID, f.Question, f.Answer, f.Rating, f.Comment, f.SuggestedAnswer, string(chunksJSON), f.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}

	logger.Info("Feedback stored",
		zap.String("session_id", f.SessionID),
		zap.String("rating", f.Rating),
	)
	return nil
}

func (c *Client) Stats() (*models.JournalStats, error) {
	var s models.JournalStats

	err := c.db.QueryRow(`SELECT COUNT(DISTINCT session_id), COUNT(*) FROM interactions`).
		Scan(&s.TotalSessions, &s.TotalMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to count interactions: %w", err)
	}

	err = c.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN rating = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rating = ? THEN 1 ELSE 0 END), 0)
		FROM feedback`, models.RatingPositive, models.RatingNegative).
		Scan(&s.TotalFeedback, &s.PositiveFeedback, &s.NegativeFeedback)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}

	return &s, nil
}

// Interactions returns the most recent interactions, newest first.
func (c *Client) Interactions(limit int) ([]models.Interaction, error) {
	query := `
		SELECT id, session_id, direction, type, content, created_at
		FROM interactions
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get interactions: %w", err)
	}
	defer rows.Close()

	out := []models.Interaction{}
	for rows.Next() {
		var i models.Interaction
		var createdAt int64
		if err := rows.Scan(&i.ID, &i.SessionID, &i.Direction, &i.Type, &i.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		i.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, i)
	}
	return out, rows.Err()
}

// Feedback returns the most recent feedback entries, newest first.
func (c *Client) Feedback(limit int) ([]models.Feedback, error) {
	query := `
		SELECT id, COALESCE(session_id, ''), question, answer, rating, COALESCE(comment, ''), COALESCE(suggested_answer, ''), COALESCE(rag_chunks, '[]'), created_at
		FROM feedback
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	defer rows.Close()

	out := []models.Feedback{}
	for rows.Next() {
		var f models.Feedback
		var chunksJSON string
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Question, &f.Answer, &f.Rating, &f.Comment, &f.SuggestedAnswer, &chunksJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(chunksJSON), &f.RAGChunks); err != nil {
			logger.Warn("Corrupt rag_chunks in feedback", zap.Int64("id", f.ID), zap.Error(err))
			f.RAGChunks = []string{}
		}
		f.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, f)
	}
	return out, rows.Err()
}

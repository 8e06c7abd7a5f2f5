// Package ingestion turns evaluation report documents into normalised Report records.
//
// Report HTML has gone through several layouts, so every field is read by an
// ordered list of strategies; the first strategy that yields a value wins and a
// strategy that finds nothing simply reports absence.
package ingestion

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/pkg/logger"
)

// Document is one parsed report plus the filename it came from.
type Document struct {
	Filename string
	Stem     string
	Root     *goquery.Document
}

// Strategy reads one field from a document.
type Strategy[T any] struct {
	Name    string
	Extract func(doc *Document) (T, bool)
}

// firstOf applies strategies in order and returns the first value found.
func firstOf[T any](doc *Document, strategies []Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Extract(doc); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

type Extractor struct {
	maxAnswerLength int
}

type Option func(*Extractor)

// WithMaxAnswerLength caps answers at n runes; zero disables the cap.
func WithMaxAnswerLength(n int) Option {
	return func(e *Extractor) {
		e.maxAnswerLength = n
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stem returns the report id for a filename.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extract never fails: any problem yields a Parse Error report carrying the cause.
func (e *Extractor) Extract(filename string, content []byte) (report *models.Report) {
	base := filepath.Base(filename)
	stem := Stem(base)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Report extraction panicked",
				zap.String("file", base),
				zap.Any("panic", r),
			)
			report = models.NewParseErrorReport(stem, base, fmt.Errorf("extraction panic: %v", r))
		}
	}()

	root, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		logger.Warn("Failed to parse report HTML", zap.String("file", base), zap.Error(err))
		return models.NewParseErrorReport(stem, base, fmt.Errorf("failed to parse HTML: %w", err))
	}

	doc := &Document{Filename: base, Stem: stem, Root: root}
	report = models.NewReport(stem, base)

	if at, _, ok := firstOf(doc, generatedStrategies); ok {
		report.Date = at.Date
		report.Time = at.Time
	}

	if n, _, ok := firstOf(doc, questionCountStrategies); ok {
		report.QuestionsCount = n
	}

	if model, source, ok := firstOf(doc, modelStrategies); ok {
		report.Model = model
		logger.Debug("Model resolved", zap.String("file", base), zap.String("source", source))
	}

	if score, source, ok := firstOf(doc, scoreStrategies); ok {
		report.ScorePercent = score
		logger.Debug("Score resolved", zap.String("file", base), zap.String("source", source))
	}

	if cfg, _, ok := firstOf(doc, serverConfigStrategies); ok {
		report.ServerConfig = cfg
	}

	if model, _, ok := firstOf(doc, testModelStrategies); ok {
		report.TestConfig["model"] = model
	}

	report.Questions = extractQuestions(doc, e.maxAnswerLength)

	return report
}

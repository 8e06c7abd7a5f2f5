// Package testutil builds report documents and datasets for package tests.
package testutil

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Row is one results-table row of a generated report.
type Row struct {
	Question string
	Answer   string
	Score    int
}

// ReportHTML describes a report in the layout produced by the evaluation pipeline.
// Empty fields leave the corresponding element out of the document.
type ReportHTML struct {
	Generated    string
	Questions    int
	Model        string
	ScoreValue   string
	ScoreSubtext string
	ServerConfig string
	TestModel    string
	Rows         []Row
}

func (r ReportHTML) String() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Evaluation Report</title></head><body>\n")

	var subtitle []string
	if r.Generated != "" {
		subtitle = append(subtitle, "Generated: "+r.Generated)
	}
	if r.Questions > 0 {
		subtitle = append(subtitle, fmt.Sprintf("Questions: %d", r.Questions))
	}
	if r.Model != "" {
		subtitle = append(subtitle, "Model: "+html.EscapeString(r.Model))
	}
	b.WriteString(`<div class="header"><h1>RAG Evaluation</h1>`)
	if len(subtitle) > 0 {
		fmt.Fprintf(&b, `<div class="subtitle">%s</div>`, strings.Join(subtitle, " | "))
	}
	b.WriteString("</div>\n")

	if r.ScoreValue != "" {
		b.WriteString(`<div class="metrics"><div class="metric-card highlight"><div class="label">Total Score</div>`)
		fmt.Fprintf(&b, `<div class="value">%s</div>`, r.ScoreValue)
		if r.ScoreSubtext != "" {
			fmt.Fprintf(&b, `<div class="subtext">%s</div>`, r.ScoreSubtext)
		}
		b.WriteString("</div></div>\n")
	}

	if r.ServerConfig != "" {
		fmt.Fprintf(&b, `<div id="serverConfigModal" class="modal"><pre class="prompt-text">%s</pre></div>`+"\n",
			html.EscapeString(r.ServerConfig))
	}

	if r.TestModel != "" {
		fmt.Fprintf(&b, `<div id="promptModal" class="modal"><div class="model-info">Model: %s</div></div>`+"\n",
			html.EscapeString(r.TestModel))
	}

	b.WriteString(`<table class="results-table"><thead><tr><th>#</th><th>Question</th><th>Answer</th><th>Score</th></tr></thead><tbody>` + "\n")
	for i, row := range r.Rows {
		fmt.Fprintf(&b, `<tr><td>%d</td><td><div class="question-text">%s</div></td><td>%s</td><td><span class="score-badge">%d/50</span></td></tr>`+"\n",
			i+1, html.EscapeString(row.Question), html.EscapeString(row.Answer), row.Score)
		fmt.Fprintf(&b, `<tr class="details-row"><td colspan="4"><div class="question-text">details %d</div></td><td></td><td></td><td></td></tr>`+"\n", i+1)
	}
	b.WriteString("</tbody></table></body></html>\n")

	return b.String()
}

// StandardReport is a well-formed report scoring 38/50 (76%).
func StandardReport(model string, rows ...Row) ReportHTML {
	if len(rows) == 0 {
		rows = []Row{{Question: "How do I craft a torch?", Answer: "Combine a stick and coal.", Score: 38}}
	}
	return ReportHTML{
		Generated:    "2026-01-06 03:06",
		Questions:    len(rows),
		Model:        model,
		ScoreValue:   "38/50",
		ScoreSubtext: "76% of max score",
		ServerConfig: `{"rag_chunks": 5, "temperature": 0.2}`,
		TestModel:    model,
		Rows:         rows,
	}
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Rows builds n rows with distinct questions and the given score.
func Rows(n, score int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Question: fmt.Sprintf("Question %d?", i+1),
			Answer:   fmt.Sprintf("Answer %d.", i+1),
			Score:    score,
		}
	}
	return rows
}

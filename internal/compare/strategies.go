package compare

import (
	"strings"
	"unicode/utf8"

	"github.com/rag-dashboard/backend/internal/storage/models"
)

const (
	ModeIndex = "index"
	ModeText  = "text"
)

// textKeyLength is the number of runes of question text that identify a question across reports.
const textKeyLength = 100

// Strategy lines up the questions of several reports into rows.
type Strategy interface {
	Name() string
	Align(reports []*models.Report) []Row
}

type Row struct {
	Index   int    `json:"index"`
	Key     string `json:"key,omitempty"`
	Answers []Cell `json:"answers"`
}

// Cell is one report's entry in a row. Nil fields mean the report has no question there.
type Cell struct {
	ReportID     string   `json:"report_id"`
	Model        string   `json:"model"`
	Date         string   `json:"date"`
	Question     *string  `json:"question"`
	Answer       *string  `json:"answer"`
	Score        *int     `json:"score"`
	ScorePercent *float64 `json:"score_percent"`
}

func emptyCell(r *models.Report) Cell {
	return Cell{ReportID: r.ID, Model: r.Model, Date: r.Date}
}

func filledCell(r *models.Report, q models.Question) Cell {
	c := emptyCell(r)
	question, answer, score, percent := q.Question, q.Answer, q.Score, q.ScorePercent()
	c.Question = &question
	c.Answer = &answer
	c.Score = &score
	c.ScorePercent = &percent
	return c
}

// IndexAligned pairs the i-th question of every report.
type IndexAligned struct{}

func (IndexAligned) Name() string { return ModeIndex }

func (IndexAligned) Align(reports []*models.Report) []Row {
	longest := 0
	for _, r := range reports {
		longest = max(longest, len(r.Questions))
	}

	rows := make([]Row, longest)
	for i := range rows {
		cells := make([]Cell, len(reports))
		for j, r := range reports {
			if i < len(r.Questions) {
				cells[j] = filledCell(r, r.Questions[i])
			} else {
				cells[j] = emptyCell(r)
			}
		}
		rows[i] = Row{Index: i + 1, Answers: cells}
	}
	return rows
}

// TextKeyed groups questions by the leading runes of their trimmed text,
// in order of first appearance. Within a report the first occurrence of a key wins.
type TextKeyed struct{}

func (TextKeyed) Name() string { return ModeText }

func (TextKeyed) Align(reports []*models.Report) []Row {
	var keys []string
	found := make(map[string][]*models.Question)

	for j, r := range reports {
		for k := range r.Questions {
			key := questionKey(r.Questions[k].Question)
			slots, seen := found[key]
			if !seen {
				slots = make([]*models.Question, len(reports))
				found[key] = slots
				keys = append(keys, key)
			}
			if slots[j] == nil {
				slots[j] = &r.Questions[k]
			}
		}
	}

	rows := make([]Row, len(keys))
	for i, key := range keys {
		cells := make([]Cell, len(reports))
		for j, r := range reports {
			if q := found[key][j]; q != nil {
				cells[j] = filledCell(r, *q)
			} else {
				cells[j] = emptyCell(r)
			}
		}
		rows[i] = Row{Index: i + 1, Key: key, Answers: cells}
	}
	return rows
}

func questionKey(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= textKeyLength {
		return text
	}
	return string([]rune(text)[:textKeyLength])
}

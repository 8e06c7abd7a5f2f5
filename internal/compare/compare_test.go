package compare

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-dashboard/backend/internal/reports"
	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/internal/testutil"
)

func report(id string, questions ...models.Question) *models.Report {
	r := models.NewReport(id, id+".html")
	r.Model = "model-" + id
	r.Date = "2026-01-06"
	r.Questions = questions
	return r
}

func q(text string, score int) models.Question {
	return models.Question{Question: text, Answer: "answer to " + text, Score: score}
}

func ptr[T any](v T) *T { return &v }

func TestIndexAligned_PlaceholdersForShorterReport(t *testing.T) {
	a := report("a", q("q1", 50), q("q2", 0), q("q3", 25))
	b := report("b", q("q1", 10), q("q2", 20), q("q3", 30), q("q4", 40), q("q5", 50))

	rows := IndexAligned{}.Align([]*models.Report{a, b})
	require.Len(t, rows, 5)

	for i, row := range rows {
		assert.Equal(t, i+1, row.Index)
		require.Len(t, row.Answers, 2)
		assert.Equal(t, "a", row.Answers[0].ReportID)
		assert.Equal(t, "b", row.Answers[1].ReportID)
	}

	want := Cell{
		ReportID:     "a",
		Model:        "model-a",
		Date:         "2026-01-06",
		Question:     ptr("q2"),
		Answer:       ptr("answer to q2"),
		Score:        ptr(0),
		ScorePercent: ptr(0.0),
	}
	if diff := cmp.Diff(want, rows[1].Answers[0]); diff != "" {
		t.Errorf("scored zero cell mismatch (-want +got):\n%s", diff)
	}

	placeholder := Cell{ReportID: "a", Model: "model-a", Date: "2026-01-06"}
	for _, row := range rows[3:] {
		if diff := cmp.Diff(placeholder, row.Answers[0]); diff != "" {
			t.Errorf("row %d placeholder mismatch (-want +got):\n%s", row.Index, diff)
		}
	}
	assert.Equal(t, 80.0, *rows[3].Answers[1].ScorePercent)
}

func TestCell_JSONNullVersusZero(t *testing.T) {
	r := report("a", q("q1", 0))
	rows := IndexAligned{}.Align([]*models.Report{r, report("b")})

	data, err := json.Marshal(rows[0])
	require.NoError(t, err)

	var decoded struct {
		Answers []map[string]interface{} `json:"answers"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 0.0, decoded.Answers[0]["score"])
	assert.Equal(t, 0.0, decoded.Answers[0]["score_percent"])

	for _, field := range []string{"question", "answer", "score", "score_percent"} {
		v, present := decoded.Answers[1][field]
		assert.True(t, present, field)
		assert.Nil(t, v, field)
	}
	assert.NotContains(t, string(data), `"key"`)
}

func TestIndexAligned_NoReports(t *testing.T) {
	assert.Empty(t, IndexAligned{}.Align(nil))
}

func TestTextKeyed_GroupsByQuestionText(t *testing.T) {
	a := report("a", q("Alpha?", 10), q("Beta?", 20))
	b := report("b", q("  Beta?  ", 30), q("Gamma?", 40), q("Beta?", 1))

	rows := TextKeyed{}.Align([]*models.Report{a, b})
	require.Len(t, rows, 3)

	keys := []string{rows[0].Key, rows[1].Key, rows[2].Key}
	assert.Equal(t, []string{"Alpha?", "Beta?", "Gamma?"}, keys)

	assert.Nil(t, rows[0].Answers[1].Score, "b has no Alpha")
	assert.Equal(t, 20, *rows[1].Answers[0].Score)
	assert.Equal(t, 30, *rows[1].Answers[1].Score, "first occurrence wins")
	assert.Nil(t, rows[2].Answers[0].Question)
	assert.Equal(t, 3, rows[2].Index)
}

func TestQuestionKey_TruncatesRunes(t *testing.T) {
	long := strings.Repeat("é", 150)
	assert.Equal(t, strings.Repeat("é", 100), questionKey(long))
	assert.Equal(t, "short", questionKey(" short "))
}

func TestEngine_Compare(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "short.html", testutil.StandardReport("Short", testutil.Rows(3, 10)...).String())
	testutil.WriteFile(t, dir, "long.html", testutil.StandardReport("Long", testutil.Rows(5, 20)...).String())
	engine := NewEngine(reports.NewRepository(dir, nil, nil, ""))
	ctx := context.Background()

	res, err := engine.Compare(ctx, []string{"short", "missing", "long"}, "")
	require.NoError(t, err)
	assert.Equal(t, ModeIndex, res.Mode)

	require.Len(t, res.Reports, 2)
	assert.Equal(t, "short", res.Reports[0].ID)
	assert.Equal(t, "long", res.Reports[1].ID)

	require.Len(t, res.Questions, 5)
	assert.Nil(t, res.Questions[3].Answers[0].Score)
	assert.Nil(t, res.Questions[4].Answers[0].ScorePercent)
	assert.Equal(t, 40.0, *res.Questions[4].Answers[1].ScorePercent)

	res, err = engine.Compare(ctx, []string{"short", "long"}, ModeText)
	require.NoError(t, err)
	assert.Equal(t, ModeText, res.Mode)
	assert.Len(t, res.Questions, 5)
	assert.Equal(t, "Question 1?", res.Questions[0].Key)

	_, err = engine.Compare(ctx, []string{"short"}, "semantic")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestEngine_NothingResolves(t *testing.T) {
	engine := NewEngine(reports.NewRepository(t.TempDir(), nil, nil, ""))

	res, err := engine.Compare(context.Background(), []string{"x", "../etc/passwd"}, ModeIndex)
	require.NoError(t, err)
	assert.Empty(t, res.Reports)
	assert.NotNil(t, res.Questions)
	assert.Empty(t, res.Questions)
}

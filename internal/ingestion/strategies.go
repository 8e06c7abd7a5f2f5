package ingestion

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rag-dashboard/backend/internal/storage/models"
)

var (
	generatedPattern = regexp.MustCompile(`Generated:\s*(\d{4}-\d{2}-\d{2})\s*(\d{2}:\d{2})`)
	questionsPattern = regexp.MustCompile(`Questions:\s*(\d+)`)
	modelPattern     = regexp.MustCompile(`Model:\s*([^|\n]+)`)
	numberPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	percentPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	integerPattern   = regexp.MustCompile(`\d+`)
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	// Only a single level of braces: nested configs match their innermost object.
	flatObjectPattern = regexp.MustCompile(`\{[^{}]*\}`)

	entityReplacer  = strings.NewReplacer("&quot;", `"`, "&amp;", "&")
	newlineReplacer = strings.NewReplacer("\r", "", "\n", "")
)

type generatedAt struct {
	Date string
	Time string
}

var generatedStrategies = []Strategy[generatedAt]{
	{Name: "subtitle", Extract: generatedFromSubtitle},
}

var questionCountStrategies = []Strategy[int]{
	{Name: "subtitle", Extract: questionCountFromSubtitle},
}

var modelStrategies = []Strategy[string]{
	{Name: "subtitle", Extract: modelFromSubtitle},
	{Name: "filename", Extract: modelFromFilename},
}

var scoreStrategies = []Strategy[float64]{
	{Name: "highlight-subtext", Extract: scoreFromHighlight},
	{Name: "labeled-metric", Extract: scoreFromLabeledMetric},
}

var serverConfigStrategies = []Strategy[map[string]interface{}]{
	{Name: "server-config-modal", Extract: serverConfigFromModal},
}

var testModelStrategies = []Strategy[string]{
	{Name: "prompt-modal", Extract: testModelFromPromptModal},
}

func subtitleText(doc *Document) (string, bool) {
	sel := doc.Root.Find(".header .subtitle").First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

func generatedFromSubtitle(doc *Document) (generatedAt, bool) {
	text, ok := subtitleText(doc)
	if !ok {
		return generatedAt{}, false
	}
	m := generatedPattern.FindStringSubmatch(text)
	if m == nil {
		return generatedAt{}, false
	}
	return generatedAt{Date: m[1], Time: m[2]}, true
}

func questionCountFromSubtitle(doc *Document) (int, bool) {
	text, ok := subtitleText(doc)
	if !ok {
		return 0, false
	}
	m := questionsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func modelFromSubtitle(doc *Document) (string, bool) {
	text, ok := subtitleText(doc)
	if !ok {
		return "", false
	}
	m := modelPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	model := strings.TrimSpace(m[1])
	return model, model != ""
}

// modelFromFilename assumes evaluation_report_DD_MM_HH-MMAM_<Model_Name>.html.
// Model names with a different number of leading tokens are mis-split.
func modelFromFilename(doc *Document) (string, bool) {
	parts := strings.Split(doc.Stem, "_")
	if len(parts) <= 4 {
		return "", false
	}
	modelParts := parts[4:]
	if len(parts) > 5 {
		modelParts = parts[5:]
	}
	model := strings.Join(modelParts, " ")
	return model, model != ""
}

// scoreFromHighlight reads the percentage from the highlighted card's subtext.
// A zero percentage is treated as absent so that the labeled card can supply a score.
func scoreFromHighlight(doc *Document) (float64, bool) {
	value := doc.Root.Find(".metric-card.highlight .value").First()
	if value.Length() == 0 || !numberPattern.MatchString(value.Text()) {
		return 0, false
	}
	subtext := doc.Root.Find(".metric-card.highlight .subtext").First()
	if subtext.Length() == 0 {
		return 0, false
	}
	m := percentPattern.FindStringSubmatch(subtext.Text())
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct == 0 {
		return 0, false
	}
	return pct, true
}

func scoreFromLabeledMetric(doc *Document) (float64, bool) {
	var (
		score float64
		found bool
	)
	doc.Root.Find(".metric-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		label := card.Find(".label").First()
		if label.Length() == 0 || !strings.Contains(strings.ToLower(label.Text()), "score") {
			return true
		}
		value := card.Find(".value").First()
		if value.Length() == 0 {
			return true
		}
		m := numberPattern.FindStringSubmatch(value.Text())
		if m == nil {
			return true
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return true
		}
		score, found = v, true
		return false
	})
	return score, found
}

// serverConfigFromModal recovers the JSON object rendered as escaped text in the config modal.
// Tags are stripped from the markup before entities are decoded, so escaped
// angle brackets inside values survive.
func serverConfigFromModal(doc *Document) (map[string]interface{}, bool) {
	sel := doc.Root.Find("#serverConfigModal .prompt-text").First()
	if sel.Length() == 0 {
		return nil, false
	}
	markup, err := goquery.OuterHtml(sel)
	if err != nil {
		return nil, false
	}
	return parseEmbeddedObject(markup)
}

func parseEmbeddedObject(markup string) (map[string]interface{}, bool) {
	text := tagPattern.ReplaceAllString(markup, "")
	text = html.UnescapeString(text)
	// Pipelines that escape twice leave entities behind after one decode.
	text = entityReplacer.Replace(text)
	text = strings.TrimSpace(newlineReplacer.Replace(text))

	span := flatObjectPattern.FindString(text)
	if span == "" {
		return nil, false
	}

	var cfg map[string]interface{}
	if err := json.Unmarshal([]byte(span), &cfg); err != nil || cfg == nil {
		return nil, false
	}
	return cfg, true
}

func testModelFromPromptModal(doc *Document) (string, bool) {
	sel := doc.Root.Find("#promptModal .model-info").First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(strings.ReplaceAll(sel.Text(), "Model:", "")), true
}

func extractQuestions(doc *Document, maxAnswerLength int) []models.Question {
	questions := []models.Question{}

	doc.Root.Find(".results-table tbody tr:not(.details-row)").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		questionText := cells.Eq(1).Find(".question-text").First()
		if questionText.Length() == 0 {
			return
		}

		q := models.Question{
			Question: strings.TrimSpace(questionText.Text()),
			Answer:   truncateRunes(strings.TrimSpace(cells.Eq(2).Text()), maxAnswerLength),
		}

		badge := cells.Eq(3).Find(".score-badge").First()
		if badge.Length() > 0 {
			if m := integerPattern.FindString(badge.Text()); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					q.Score = n
				}
			}
		}

		questions = append(questions, q)
	})

	return questions
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

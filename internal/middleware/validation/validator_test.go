package validation

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGuard(t *testing.T) {
	app := fiber.New()
	app.Get("/report/:id", IDGuard(Config{MaxIDLength: 16}, "id"), func(c *fiber.Ctx) error {
		return c.SendString(c.Params("id"))
	})

	tests := []struct {
		path string
		want int
	}{
		{"/report/report_06_01_01-24AM_a", fiber.StatusBadRequest},
		{"/report/abc", fiber.StatusOK},
		{"/report/a..b", fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCheckID(t *testing.T) {
	assert.Equal(t, "", checkID("report_1", DefaultMaxIDLength))
	assert.Equal(t, "empty", checkID("", DefaultMaxIDLength))
	assert.Equal(t, "contains a path separator", checkID("a/b", DefaultMaxIDLength))
	assert.Equal(t, "contains a path separator", checkID(`a\b`, DefaultMaxIDLength))
	assert.Equal(t, "contains a parent reference", checkID("..", DefaultMaxIDLength))
	assert.Equal(t, "too long", checkID("abcdef", 3))
}

type parsed struct {
	Offset   int      `json:"offset"`
	Limit    int      `json:"limit"`
	Chunks   *int     `json:"chunks"`
	MinScore *float64 `json:"min_score"`
	Error    string   `json:"error"`
}

func queryApp() *fiber.App {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		offset, limit, err := Pagination(c, 50)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		chunks, err := OptionalInt(c, "chunks")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		minScore, err := OptionalFloat(c, "min_score")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(parsed{Offset: offset, Limit: limit, Chunks: chunks, MinScore: minScore})
	})
	return app
}

func get(t *testing.T, app *fiber.App, target string) (int, parsed) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var p parsed
	require.NoError(t, json.Unmarshal(body, &p))
	return resp.StatusCode, p
}

func TestQueryParsing(t *testing.T) {
	app := queryApp()

	status, p := get(t, app, "/")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, 50, p.Limit)
	assert.Nil(t, p.Chunks)
	assert.Nil(t, p.MinScore)

	status, p = get(t, app, "/?offset=10&limit=5&chunks=3&min_score=62.5")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 10, p.Offset)
	assert.Equal(t, 5, p.Limit)
	require.NotNil(t, p.Chunks)
	assert.Equal(t, 3, *p.Chunks)
	require.NotNil(t, p.MinScore)
	assert.Equal(t, 62.5, *p.MinScore)

	status, p = get(t, app, "/?chunks=&min_score=")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, p.Chunks)
	assert.Nil(t, p.MinScore)
}

func TestQueryParsing_Malformed(t *testing.T) {
	app := queryApp()

	for _, target := range []string{
		"/?offset=abc",
		"/?offset=-1",
		"/?limit=ten",
		"/?limit=-5",
		"/?chunks=3.5",
		"/?min_score=high",
		"/?min_score=NaN",
	} {
		status, p := get(t, app, target)
		assert.Equal(t, fiber.StatusBadRequest, status, target)
		assert.NotEmpty(t, p.Error, target)
	}
}

func TestIDList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, IDList(" a, ,b,"))
	assert.Nil(t, IDList(""))
}

package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_ScorePercent(t *testing.T) {
	assert.Equal(t, 76.0, Question{Score: 38}.ScorePercent())
	assert.Equal(t, 0.0, Question{}.ScorePercent())
	assert.Equal(t, 100.0, Question{Score: 50}.ScorePercent())
}

func TestReportMeta_ChunkCount(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
		want   int
		ok     bool
	}{
		{"json number", map[string]interface{}{"rag_chunks": 5.0}, 5, true},
		{"first key wins", map[string]interface{}{"top_k": 3.0, "chunks": 7.0}, 7, true},
		{"numeric string", map[string]interface{}{"num_chunks": " 4 "}, 4, true},
		{"fractional ignored", map[string]interface{}{"chunks": 2.5}, 0, false},
		{"absent", map[string]interface{}{"temperature": 0.2}, 0, false},
		{"nil config", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReportMeta{ServerConfig: tt.config}.ChunkCount()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewParseErrorReport(t *testing.T) {
	r := NewParseErrorReport("bad", "bad.html", errors.New("boom"))
	assert.Equal(t, ParseErrorModel, r.Model)
	assert.Equal(t, "boom", r.Error)
	assert.True(t, r.IsParseError())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"server_config":{}`)
	assert.Contains(t, string(data), `"questions":[]`)
	assert.Contains(t, string(data), `"error":"boom"`)
}

func TestReportMeta_OmitsQuestions(t *testing.T) {
	r := NewReport("a", "a.html")
	data, err := json.Marshal(r.ReportMeta)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "questions\":")
	assert.NotContains(t, string(data), "error")
}

package ingestion

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTimestamp(t *testing.T) {
	tests := []struct {
		filename string
		want     Timestamp
	}{
		{"evaluation_report_06_01_03-06AM_Llama_3.1_8B.html", Timestamp{Month: 1, Day: 6, Hour: 3, Minute: 6}},
		{"report_06_01_11-59PM_X.html", Timestamp{Month: 1, Day: 6, Hour: 23, Minute: 59}},
		{"report_06_01_12-15AM_X.html", Timestamp{Month: 1, Day: 6, Hour: 0, Minute: 15}},
		{"report_06_01_12-15PM_X.html", Timestamp{Month: 1, Day: 6, Hour: 12, Minute: 15}},
		{"report_06_01_01-24am_X.html", Timestamp{Month: 1, Day: 6, Hour: 1, Minute: 24}},
		{"/srv/reports/report_31_12_09-00PM_Y.html", Timestamp{Month: 12, Day: 31, Hour: 21, Minute: 0}},
		{"summary.html", Timestamp{}},
		{"report_06_13_01-00PM_X.html", Timestamp{}},
		{"report_06_01_13-00PM_X.html", Timestamp{}},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTimestamp(tt.filename))
		})
	}
}

func TestTimestamp_SameDayOrdering(t *testing.T) {
	late := ResolveTimestamp("report_06_01_11-59PM_X.html")
	early := ResolveTimestamp("report_06_01_01-24AM_Y.html")

	assert.True(t, late.After(early))
	assert.False(t, early.After(late))
	assert.Equal(t, 0, late.Compare(late))
}

func TestTimestamp_MonthBeforeDay(t *testing.T) {
	// 01 February beats 31 January.
	feb := ResolveTimestamp("report_01_02_01-00AM_A.html")
	jan := ResolveTimestamp("report_31_01_11-00PM_B.html")
	assert.True(t, feb.After(jan))
}

func TestTimestamp_DescendingSortPutsUnmatchedLast(t *testing.T) {
	names := []string{
		"notes.html",
		"report_06_01_01-24AM_Y.html",
		"report_07_01_10-00AM_Z.html",
		"report_06_01_11-59PM_X.html",
	}

	sort.SliceStable(names, func(i, j int) bool {
		return ResolveTimestamp(names[i]).After(ResolveTimestamp(names[j]))
	})

	assert.Equal(t, []string{
		"report_07_01_10-00AM_Z.html",
		"report_06_01_11-59PM_X.html",
		"report_06_01_01-24AM_Y.html",
		"notes.html",
	}, names)
	assert.True(t, ResolveTimestamp("notes.html").IsZero())
}

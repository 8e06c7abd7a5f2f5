package ingestion

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Filenames look like evaluation_report_DD_MM_HH-MMAM_<model>.html.
var filenameTimestampPattern = regexp.MustCompile(`(?i)_(\d{1,2})_(\d{1,2})_(\d{1,2})-(\d{2})(AM|PM)`)

// Timestamp is the 24-hour time encoded in a report filename. It has no year,
// so collections spanning a new year do not sort chronologically.
type Timestamp struct {
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t Timestamp) IsZero() bool {
	return t == Timestamp{}
}

// Compare orders by month, day, hour, minute.
func (t Timestamp) Compare(o Timestamp) int {
	a := [4]int{t.Month, t.Day, t.Hour, t.Minute}
	b := [4]int{o.Month, o.Day, o.Hour, o.Minute}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func (t Timestamp) After(o Timestamp) bool {
	return t.Compare(o) > 0
}

// ResolveTimestamp parses the filename timestamp; unmatched or out of range
// filenames resolve to the zero Timestamp.
func ResolveTimestamp(filename string) Timestamp {
	m := filenameTimestampPattern.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return Timestamp{}
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])

	if day < 1 || day > 31 || month < 1 || month > 12 || hour < 1 || hour > 12 || minute > 59 {
		return Timestamp{}
	}

	switch strings.ToUpper(m[5]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}

	return Timestamp{Month: month, Day: day, Hour: hour, Minute: minute}
}

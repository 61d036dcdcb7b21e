package models

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Source column names in the FARS accident files
const (
	ColumnState     = "STATE"
	ColumnMonth     = "MONTH"
	ColumnLongitude = "LONGITUD"
	ColumnLatitude  = "LATITUDE"

	// ColumnYear is added during projection, it does not exist in the files
	ColumnYear = "year"
)

// Sentinels FARS uses for unknown coordinates (e.g. 999.9999, 99.9999)
const (
	MaxLongitude = 900.0
	MaxLatitude  = 90.0
)

// Year is a normalized calendar year used to key files and summary columns
type Year int

// NormalizeYear truncates toward zero: 2013.9 becomes 2013, never 2014.
func NormalizeYear(v float64) Year {
	return Year(math.Trunc(v))
}

// ParseYears reads comma separated year lists such as "2013,2014.5". Each
// value may itself hold several years; empty items are skipped.
func ParseYears(values ...string) ([]Year, error) {
	var years []Year
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := strconv.ParseFloat(part, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, &ValidationError{
					Field:   "years",
					Value:   part,
					Message: fmt.Sprintf("invalid years value %q, expected a number", part),
				}
			}
			years = append(years, NormalizeYear(f))
		}
	}

	if len(years) == 0 {
		return nil, &ValidationError{Field: "years", Message: "years is required, e.g. 2013,2014"}
	}
	return years, nil
}

// NormalizeStateCode truncates a numeric state code the same way years are.
func NormalizeStateCode(v float64) int {
	return int(math.Trunc(v))
}

// AccidentPoint is one accident reduced to what the state map needs.
// Longitude and Latitude are nil when the file carried a missing-value sentinel.
type AccidentPoint struct {
	State     int      `json:"state"`
	Month     int      `json:"month"`
	Longitude *float64 `json:"longitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
}

// NewAccidentPoint resolves the coordinate sentinels once.
func NewAccidentPoint(state, month int, longitude, latitude float64) AccidentPoint {
	p := AccidentPoint{State: state, Month: month}
	if longitude <= MaxLongitude && !math.IsNaN(longitude) {
		lon := longitude
		p.Longitude = &lon
	}
	if latitude <= MaxLatitude && !math.IsNaN(latitude) {
		lat := latitude
		p.Latitude = &lat
	}
	return p
}

// Plottable reports whether both coordinates are known
func (p AccidentPoint) Plottable() bool {
	return p.Longitude != nil && p.Latitude != nil
}

// Range is a closed interval over one coordinate axis
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// StateMap is everything a renderer needs to draw one state's accidents for one year
type StateMap struct {
	State     int             `json:"state"`
	Year      Year            `json:"year"`
	Points    []AccidentPoint `json:"points"`
	Longitude Range           `json:"longitude"`
	Latitude  Range           `json:"latitude"`
}

// NewStateMap keeps only plottable points and computes their ranges.
// The second return value is false when nothing is left to draw.
func NewStateMap(state int, year Year, points []AccidentPoint) (*StateMap, bool) {
	m := &StateMap{State: state, Year: year}
	for _, p := range points {
		if !p.Plottable() {
			continue
		}
		if len(m.Points) == 0 {
			m.Longitude = Range{Min: *p.Longitude, Max: *p.Longitude}
			m.Latitude = Range{Min: *p.Latitude, Max: *p.Latitude}
		} else {
			m.Longitude.Min = math.Min(m.Longitude.Min, *p.Longitude)
			m.Longitude.Max = math.Max(m.Longitude.Max, *p.Longitude)
			m.Latitude.Min = math.Min(m.Latitude.Min, *p.Latitude)
			m.Latitude.Max = math.Max(m.Latitude.Max, *p.Latitude)
		}
		m.Points = append(m.Points, p)
	}
	return m, len(m.Points) > 0
}

// RenderOutcome tells callers whether a state map was actually drawn
type RenderOutcome int

const (
	OutcomePlotted RenderOutcome = iota
	OutcomeNoAccidents
)

// String returns the metric/log label of the outcome
func (o RenderOutcome) String() string {
	switch o {
	case OutcomePlotted:
		return "plotted"
	case OutcomeNoAccidents:
		return "no_accidents"
	default:
		return "unknown"
	}
}

// SummaryRow holds the counts of one month. Years without records are absent, not zero.
type SummaryRow struct {
	Month  int          `json:"month"`
	Counts map[Year]int `json:"counts"`
}

// SummaryTable is the month by year accident count pivot
type SummaryTable struct {
	Years []Year       `json:"years"`
	Rows  []SummaryRow `json:"rows"`
}

// MonthlyCount is one (year, month) cell, the long form of a SummaryTable
type MonthlyCount struct {
	Year  Year `json:"year" db:"year"`
	Month int  `json:"month" db:"month"`
	Count int  `json:"count" db:"accident_count"`
}

// NewSummaryTable pivots long-form counts. years is the set of columns; it may
// include years that contributed no counts. Rows come out ordered by month.
func NewSummaryTable(years []Year, counts []MonthlyCount) *SummaryTable {
	t := &SummaryTable{
		Years: make([]Year, 0, len(years)),
		Rows:  []SummaryRow{},
	}

	seen := make(map[Year]bool, len(years))
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			t.Years = append(t.Years, y)
		}
	}
	sort.Slice(t.Years, func(i, j int) bool { return t.Years[i] < t.Years[j] })

	byMonth := make(map[int]map[Year]int)
	for _, c := range counts {
		row, ok := byMonth[c.Month]
		if !ok {
			row = make(map[Year]int)
			byMonth[c.Month] = row
		}
		row[c.Year] += c.Count
	}

	months := make([]int, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Ints(months)

	for _, m := range months {
		t.Rows = append(t.Rows, SummaryRow{Month: m, Counts: byMonth[m]})
	}
	return t
}

// Cell returns the count for (month, year); ok is false for absent combinations
func (t *SummaryTable) Cell(month int, year Year) (int, bool) {
	for _, row := range t.Rows {
		if row.Month == month {
			n, ok := row.Counts[year]
			return n, ok
		}
	}
	return 0, false
}

// Months lists the row keys in order
func (t *SummaryTable) Months() []int {
	months := make([]int, len(t.Rows))
	for i, row := range t.Rows {
		months[i] = row.Month
	}
	return months
}

// Empty reports a degenerate table with no rows
func (t *SummaryTable) Empty() bool {
	return len(t.Rows) == 0
}

// Counts flattens the table back to long form, ordered by year then month
func (t *SummaryTable) Counts() []MonthlyCount {
	var out []MonthlyCount
	for _, y := range t.Years {
		for _, row := range t.Rows {
			if n, ok := row.Counts[y]; ok {
				out = append(out, MonthlyCount{Year: y, Month: row.Month, Count: n})
			}
		}
	}
	return out
}

// WriteText prints the table with one column per year. Absent cells print as "-".
func (t *SummaryTable) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(tw, "MONTH\t")
	for _, y := range t.Years {
		fmt.Fprintf(tw, "%d\t", y)
	}
	fmt.Fprintln(tw)

	for _, row := range t.Rows {
		fmt.Fprintf(tw, "%d\t", row.Month)
		for _, y := range t.Years {
			if n, ok := row.Counts[y]; ok {
				fmt.Fprintf(tw, "%d\t", n)
			} else {
				fmt.Fprint(tw, "-\t")
			}
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}

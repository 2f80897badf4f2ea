package surveyimport

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/bluecrab/gis-backend/internal/survey"
)

// RequiredColumns must all be present, case-sensitive after trimming.
var RequiredColumns = []string{
	"date_month", "date_year", "male_counts", "female_counts",
	"population", "observer_name", "latitude", "longitude",
}

// Optional columns copied onto the record when present.
const (
	ColObserverEmail        = "observer_email"
	ColObserverOrganization = "observer_organization"
	ColLocationName         = "location_name"
	ColRegion               = "region"
)

var numericColumns = []string{
	"date_month", "date_year", "male_counts", "female_counts",
	"population", "latitude", "longitude",
}

var wholeColumns = []string{"date_month", "date_year", "male_counts", "female_counts", "population"}

const (
	PreviewSize   = 5
	maxViolations = 5
)

// Row is a validated, typed CSV row.
type Row struct {
	DateMonth            int     `json:"date_month"`
	DateYear             int     `json:"date_year"`
	MaleCounts           int     `json:"male_counts"`
	FemaleCounts         int     `json:"female_counts"`
	Population           int     `json:"population"`
	ObserverName         string  `json:"observer_name"`
	ObserverEmail        string  `json:"observer_email,omitempty"`
	ObserverOrganization string  `json:"observer_organization,omitempty"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	LocationName         string  `json:"location_name,omitempty"`
	Region               string  `json:"region,omitempty"`
}

// Record converts the row into a store insert.
func (r Row) Record() survey.NewRecord {
	return survey.NewRecord{
		DateMonth:            r.DateMonth,
		DateYear:             r.DateYear,
		MaleCounts:           r.MaleCounts,
		FemaleCounts:         r.FemaleCounts,
		Population:           r.Population,
		ObserverName:         r.ObserverName,
		ObserverEmail:        r.ObserverEmail,
		ObserverOrganization: r.ObserverOrganization,
		Latitude:             r.Latitude,
		Longitude:            r.Longitude,
		LocationName:         r.LocationName,
		Region:               r.Region,
	}
}

// Validated holds a fully checked upload awaiting Commit.
type Validated struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Preview returns the first PreviewSize rows.
func (v *Validated) Preview() []Row {
	if len(v.Rows) <= PreviewSize {
		return v.Rows
	}
	return v.Rows[:PreviewSize]
}

// ValidateAndPreview runs the ingestion checks in order and stops at the
// first failing stage. On success nothing has been written; the caller shows
// Preview and then calls Commit.
func ValidateAndPreview(raw []RawRow) (*Validated, error) {
	if len(raw) == 0 {
		return nil, survey.NewValidationError("validate csv", ErrNoRows.Error())
	}

	rows := normalizeHeaders(raw)
	columns := columnSet(rows[0])

	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := rows[0][c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, survey.NewValidationError("validate csv",
			"Missing required columns: "+strings.Join(missing, ", "), missing...)
	}

	for _, r := range rows {
		r["date_month"] = MonthToken(r["date_month"])
	}

	nums := make([]map[string]float64, len(rows))
	for i := range nums {
		nums[i] = make(map[string]float64, len(numericColumns))
	}
	for _, col := range numericColumns {
		for i, r := range rows {
			f, ok := parseNumber(r[col])
			if !ok {
				msg := fmt.Sprintf("Invalid value in row %d, column '%s': '%s'", i+2, col, r[col])
				return nil, survey.NewValidationError("validate csv", msg, msg)
			}
			nums[i][col] = f
		}
	}

	var violations []string
	for i, n := range nums {
		violations = append(violations, rowViolations(i+2, n, rows[i])...)
	}
	if len(violations) > 0 {
		details := violations
		if len(details) > maxViolations {
			details = append(details[:maxViolations:maxViolations],
				fmt.Sprintf("... and %d more errors", len(violations)-maxViolations))
		}
		return nil, survey.NewValidationError("validate csv",
			"Data validation failed:\n"+strings.Join(details, "\n"), details...)
	}

	out := &Validated{Columns: columns, Rows: make([]Row, len(rows))}
	for i, r := range rows {
		n := nums[i]
		out.Rows[i] = Row{
			DateMonth:            int(n["date_month"]),
			DateYear:             int(n["date_year"]),
			MaleCounts:           int(n["male_counts"]),
			FemaleCounts:         int(n["female_counts"]),
			Population:           int(n["population"]),
			ObserverName:         strings.TrimSpace(r["observer_name"]),
			ObserverEmail:        strings.TrimSpace(r[ColObserverEmail]),
			ObserverOrganization: strings.TrimSpace(r[ColObserverOrganization]),
			Latitude:             n["latitude"],
			Longitude:            n["longitude"],
			LocationName:         strings.TrimSpace(r[ColLocationName]),
			Region:               strings.TrimSpace(r[ColRegion]),
		}
	}
	return out, nil
}

func rowViolations(rowNum int, n map[string]float64, raw RawRow) []string {
	var out []string
	if n["male_counts"]+n["female_counts"] != n["population"] {
		out = append(out, fmt.Sprintf("Row %d: Male + Female counts don't equal population", rowNum))
	}
	if m := n["date_month"]; m < 1 || m > 12 {
		out = append(out, fmt.Sprintf("Row %d: Invalid month value", rowNum))
	}
	for _, c := range wholeColumns {
		switch v := n[c]; {
		case v != math.Trunc(v):
			out = append(out, fmt.Sprintf("Row %d: %s must be a whole number", rowNum, c))
		case v < math.MinInt32 || v > survey.MaxCount:
			out = append(out, fmt.Sprintf("Row %d: %s is out of range", rowNum, c))
		}
	}
	if n["male_counts"] < 0 || n["female_counts"] < 0 {
		out = append(out, fmt.Sprintf("Row %d: Counts cannot be negative", rowNum))
	}
	if n["population"] <= 0 {
		out = append(out, fmt.Sprintf("Row %d: Population must be greater than 0", rowNum))
	}
	if y := n["date_year"]; y < survey.MinYear || y > survey.MaxYear {
		out = append(out, fmt.Sprintf("Row %d: Year must be between %d and %d", rowNum, survey.MinYear, survey.MaxYear))
	}
	if strings.TrimSpace(raw["observer_name"]) == "" {
		out = append(out, fmt.Sprintf("Row %d: Missing observer name", rowNum))
	}
	return out
}

func normalizeHeaders(raw []RawRow) []RawRow {
	out := make([]RawRow, len(raw))
	for i, r := range raw {
		n := make(RawRow, len(r))
		for k, v := range r {
			n[strings.TrimSpace(k)] = v
		}
		out[i] = n
	}
	return out
}

func columnSet(r RawRow) []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	return cols
}

func parseNumber(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

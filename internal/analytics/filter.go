package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bluecrab/gis-backend/internal/survey"
)

// Sentinel tokens the UI uses for "no filter".
const (
	AllYears  = "All Years"
	AllMonths = "All Months"
)

// Filter narrows a view to one year and/or month. Zero means unfiltered.
type Filter struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// ParseFilter reads year and month tokens. Empty strings and the sentinels
// mean no filter; months may be numbers or English month names.
func ParseFilter(year, month string) (Filter, error) {
	var f Filter

	year = strings.TrimSpace(year)
	if year != "" && year != AllYears {
		y, err := strconv.Atoi(year)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid year %q", year)
		}
		f.Year = y
	}

	month = strings.TrimSpace(month)
	if month != "" && month != AllMonths {
		m, err := parseMonth(month)
		if err != nil {
			return Filter{}, err
		}
		f.Month = m
	}
	return f, nil
}

func parseMonth(s string) (int, error) {
	m, ok := survey.MonthNumber(s)
	if !ok {
		return 0, fmt.Errorf("invalid month %q", s)
	}
	return m, nil
}

// MonthName returns the English name of month m, or "" when out of range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return time.Month(m).String()
}

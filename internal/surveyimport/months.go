package surveyimport

import (
	"strconv"
	"strings"

	"github.com/bluecrab/gis-backend/internal/survey"
)

// MonthToken maps an English month name or abbreviation to its number as a
// string. Anything else, including plain integers, is returned unchanged.
func MonthToken(v string) string {
	if _, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return v
	}
	if n, ok := survey.MonthNumber(v); ok {
		return strconv.Itoa(n)
	}
	return v
}

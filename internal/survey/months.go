package survey

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var monthTokens = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// MonthNumber parses a month given as 1-12 or as a case-insensitive English
// name or abbreviation.
func MonthNumber(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, n >= 1 && n <= 12
	}
	n, ok := monthTokens[cases.Fold().String(v)]
	return n, ok
}

package survey_test

import (
	"testing"

	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/stretchr/testify/assert"
)

// TestMonthNumber verifies numbers, names and abbreviations in any case.
func TestMonthNumber(t *testing.T) {
	for in, want := range map[string]int{
		"1": 1, " 12 ": 12, "jan": 1, "FEBRUARY": 2, " Sep ": 9, "may": 5,
	} {
		got, ok := survey.MonthNumber(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0", "13", "Sept", "", "spring"} {
		_, ok := survey.MonthNumber(in)
		assert.False(t, ok, in)
	}
}

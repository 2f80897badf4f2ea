package survey

import (
	"fmt"
	"math"
)

const (
	MinYear = 1900
	MaxYear = 2100

	// MaxCount is the largest count an INTEGER column holds on every backend.
	MaxCount = math.MaxInt32
)

// Violations lists every invariant the given values break, in a fixed order.
func Violations(month, year, male, female, population int) []string {
	var out []string
	if male+female != population {
		out = append(out, fmt.Sprintf("male_counts + female_counts must equal population (%d + %d != %d)", male, female, population))
	}
	if male < 0 || female < 0 {
		out = append(out, "male_counts and female_counts must be non-negative")
	}
	if male > MaxCount || female > MaxCount || population > MaxCount {
		out = append(out, fmt.Sprintf("counts must not exceed %d", MaxCount))
	}
	if population <= 0 {
		out = append(out, "population must be greater than 0")
	}
	if month < 1 || month > 12 {
		out = append(out, fmt.Sprintf("date_month must be between 1 and 12 (got %d)", month))
	}
	if year < MinYear || year > MaxYear {
		out = append(out, fmt.Sprintf("date_year must be between %d and %d (got %d)", MinYear, MaxYear, year))
	}
	return out
}

func checkValues(op string, month, year, male, female, population int) error {
	v := Violations(month, year, male, female, population)
	if len(v) == 0 {
		return nil
	}
	return validationError(op, v[0], v...)
}

// Validate checks the record invariants and that an observer and location
// can be determined.
func (r NewRecord) Validate() error {
	if err := checkValues("insert", r.DateMonth, r.DateYear, r.MaleCounts, r.FemaleCounts, r.Population); err != nil {
		return err
	}
	if r.ObserverID == "" && r.ObserverName == "" {
		return validationError("insert", "observer_id or observer_name is required")
	}
	return nil
}

func (u RecordUpdate) Validate() error {
	return checkValues("update", u.DateMonth, u.DateYear, u.MaleCounts, u.FemaleCounts, u.Population)
}

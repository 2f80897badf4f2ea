package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/bluecrab/gis-backend/internal/survey"
)

// Summary holds the dashboard card values.
type Summary struct {
	Year              int     `json:"year,omitempty"`
	TotalPopulation   int     `json:"total_population"`
	TotalRecords      int     `json:"total_records"`
	TotalMales        int     `json:"total_males"`
	TotalFemales      int     `json:"total_females"`
	MalePercentage    float64 `json:"male_percentage"`
	FemalePercentage  float64 `json:"female_percentage"`
	AveragePopulation int     `json:"average_population"`
	MaxPopulation     int     `json:"max_population"`
	Regions           int     `json:"regions"`
}

func summarize(pop, records, males, females, maxPop int) Summary {
	s := Summary{
		TotalPopulation: pop,
		TotalRecords:    records,
		TotalMales:      males,
		TotalFemales:    females,
		MaxPopulation:   maxPop,
	}
	if pop > 0 {
		s.MalePercentage = round1(float64(males) / float64(pop) * 100)
		s.FemalePercentage = round1(float64(females) / float64(pop) * 100)
	}
	if records > 0 {
		s.AveragePopulation = int(math.Round(float64(pop) / float64(records)))
	}
	return s
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Summarize computes the card values over an in-memory record set.
func Summarize(records []survey.Record) Summary {
	var pop, males, females, maxPop int
	regions := map[string]struct{}{}
	for _, r := range records {
		pop += r.Population
		males += r.MaleCounts
		females += r.FemaleCounts
		if r.Population > maxPop {
			maxPop = r.Population
		}
		if r.Region != "" {
			regions[r.Region] = struct{}{}
		}
	}
	s := summarize(pop, len(records), males, females, maxPop)
	s.Regions = len(regions)
	return s
}

// FilterRecords keeps records matching f.
func FilterRecords(records []survey.Record, f Filter) []survey.Record {
	var out []survey.Record
	for _, r := range records {
		if f.Year != 0 && r.DateYear != f.Year {
			continue
		}
		if f.Month != 0 && r.DateMonth != f.Month {
			continue
		}
		out = append(out, r)
	}
	return out
}

// LatestYearRecords keeps records from the newest year present and returns
// that year (0 when records is empty).
func LatestYearRecords(records []survey.Record) ([]survey.Record, int) {
	latest := 0
	for _, r := range records {
		if r.DateYear > latest {
			latest = r.DateYear
		}
	}
	if latest == 0 {
		return nil, 0
	}
	return FilterRecords(records, Filter{Year: latest}), latest
}

// Population bands.
const (
	BandLow    = "low"
	BandMedium = "medium"
	BandHigh   = "high"
)

// Band classifies a population: low below 100, high above 500.
func Band(pop int) string {
	switch {
	case pop < 100:
		return BandLow
	case pop <= 500:
		return BandMedium
	default:
		return BandHigh
	}
}

func BandCounts(records []survey.Record) map[string]int {
	out := map[string]int{BandLow: 0, BandMedium: 0, BandHigh: 0}
	for _, r := range records {
		out[Band(r.Population)]++
	}
	return out
}

// Size categories for the population breakdown chart.
const (
	SizeSmall     = "Small (<100)"
	SizeMedium    = "Medium (100-300)"
	SizeLarge     = "Large (300-500)"
	SizeVeryLarge = "Very Large (500+)"
)

// SizeBreakdown counts records per size category. Lower bounds are inclusive.
func SizeBreakdown(records []survey.Record) []Bucket {
	out := []Bucket{{Label: SizeSmall}, {Label: SizeMedium}, {Label: SizeLarge}, {Label: SizeVeryLarge}}
	for _, r := range records {
		switch p := r.Population; {
		case p < 100:
			out[0].Count++
		case p < 300:
			out[1].Count++
		case p < 500:
			out[2].Count++
		default:
			out[3].Count++
		}
	}
	return out
}

type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

var histogramEdges = []int{100, 200, 300, 400, 500}

// Histogram counts populations into 100-wide buckets with an open 500+ tail.
// Upper bounds are inclusive.
func Histogram(records []survey.Record) []Bucket {
	out := []Bucket{
		{Label: "0-100"}, {Label: "100-200"}, {Label: "200-300"},
		{Label: "300-400"}, {Label: "400-500"}, {Label: "500+"},
	}
	for _, r := range records {
		i := sort.SearchInts(histogramEdges, r.Population)
		out[i].Count++
	}
	return out
}

type MonthAverage struct {
	Month   int `json:"month"`
	Average int `json:"average"`
	Records int `json:"records"`
}

// MonthlyAverages returns twelve entries, one per calendar month, with the
// integer mean population of records in that month.
func MonthlyAverages(records []survey.Record) []MonthAverage {
	var sums, counts [12]int
	for _, r := range records {
		if r.DateMonth < 1 || r.DateMonth > 12 {
			continue
		}
		sums[r.DateMonth-1] += r.Population
		counts[r.DateMonth-1]++
	}
	out := make([]MonthAverage, 12)
	for i := range out {
		out[i] = MonthAverage{Month: i + 1, Records: counts[i]}
		if counts[i] > 0 {
			out[i].Average = sums[i] / counts[i]
		}
	}
	return out
}

// Marker aggregates records at one coordinate in one year.
type Marker struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Year         int     `json:"year"`
	LocationName string  `json:"location_name,omitempty"`
	Region       string  `json:"region,omitempty"`
	Males        int     `json:"males"`
	Females      int     `json:"females"`
	Population   int     `json:"population"`
	Records      int     `json:"records"`
}

// MapMarkers groups records by (latitude, longitude, year). A non-zero year
// limits the output to that year.
func MapMarkers(records []survey.Record, year int) []Marker {
	type key struct {
		lat, lon float64
		year     int
	}
	idx := map[key]int{}
	var out []Marker
	for _, r := range records {
		if year != 0 && r.DateYear != year {
			continue
		}
		k := key{r.Latitude, r.Longitude, r.DateYear}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Marker{
				Latitude:     r.Latitude,
				Longitude:    r.Longitude,
				Year:         r.DateYear,
				LocationName: r.LocationName,
				Region:       r.Region,
			})
		}
		out[i].Males += r.MaleCounts
		out[i].Females += r.FemaleCounts
		out[i].Population += r.Population
		out[i].Records++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if out[i].Latitude != out[j].Latitude {
			return out[i].Latitude < out[j].Latitude
		}
		return out[i].Longitude < out[j].Longitude
	})
	return out
}

// SearchRecords applies the dataset browser filters. query matches id or
// observer name case-insensitively; empty band or "all" and a zero year
// disable those filters.
func SearchRecords(records []survey.Record, query, band string, year int) []survey.Record {
	query = strings.ToLower(strings.TrimSpace(query))
	band = strings.ToLower(strings.TrimSpace(band))
	var out []survey.Record
	for _, r := range records {
		if query != "" &&
			!strings.Contains(strings.ToLower(r.ID), query) &&
			!strings.Contains(strings.ToLower(r.ObserverName), query) {
			continue
		}
		if band != "" && band != "all" && Band(r.Population) != band {
			continue
		}
		if year != 0 && r.DateYear != year {
			continue
		}
		out = append(out, r)
	}
	return out
}

package analytics

import (
	"context"

	"github.com/bluecrab/gis-backend/internal/survey"
	"gorm.io/gorm"
)

// UnknownRegion labels records whose location has no region.
const UnknownRegion = "unknown"

// MapCenter is the default map focus, Negros Island.
var MapCenter = [2]float64{10.7, 122.9}

type MonthlyTotal struct {
	Year            int `json:"year"`
	Month           int `json:"month"`
	TotalPopulation int `json:"total_population"`
	TotalMales      int `json:"total_males"`
	TotalFemales    int `json:"total_females"`
	RecordCount     int `json:"record_count"`
}

type RegionalTotal struct {
	Region          string `json:"region"`
	TotalPopulation int    `json:"total_population"`
	RecordCount     int    `json:"record_count"`
}

type SexDistribution struct {
	TotalMales   int `json:"total_males"`
	TotalFemales int `json:"total_females"`
}

// Aggregator runs the grouped read queries behind the dashboard and charts.
type Aggregator struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Aggregator { return &Aggregator{db: db} }

func (a *Aggregator) records(ctx context.Context, f Filter) *gorm.DB {
	q := a.db.WithContext(ctx).Table("crab_data AS cd")
	if f.Year != 0 {
		q = q.Where("cd.date_year = ?", f.Year)
	}
	if f.Month != 0 {
		q = q.Where("cd.date_month = ?", f.Month)
	}
	return q
}

// MonthlyTotals groups by (year, month) in ascending order.
func (a *Aggregator) MonthlyTotals(ctx context.Context, f Filter) ([]MonthlyTotal, error) {
	var out []MonthlyTotal
	err := a.records(ctx, f).
		Select(`cd.date_year AS year, cd.date_month AS month,
			SUM(cd.population) AS total_population,
			SUM(cd.male_counts) AS total_males,
			SUM(cd.female_counts) AS total_females,
			COUNT(*) AS record_count`).
		Group("cd.date_year, cd.date_month").
		Order("cd.date_year, cd.date_month").
		Scan(&out).Error
	if err != nil {
		return nil, survey.Classify("monthly totals", err)
	}
	return out, nil
}

// RegionalTotals groups by location region, largest population first.
func (a *Aggregator) RegionalTotals(ctx context.Context, f Filter) ([]RegionalTotal, error) {
	var out []RegionalTotal
	err := a.records(ctx, f).
		Select(`CASE WHEN l.region IS NULL OR l.region = '' THEN '` + UnknownRegion + `' ELSE l.region END AS region,
			SUM(cd.population) AS total_population,
			COUNT(*) AS record_count`).
		Joins("LEFT JOIN locations l ON cd.location_id = l.id").
		Group("1").
		Order("total_population DESC, region").
		Scan(&out).Error
	if err != nil {
		return nil, survey.Classify("regional totals", err)
	}
	return out, nil
}

func (a *Aggregator) SexDistribution(ctx context.Context, f Filter) (SexDistribution, error) {
	var out SexDistribution
	err := a.records(ctx, f).
		Select("COALESCE(SUM(cd.male_counts), 0) AS total_males, COALESCE(SUM(cd.female_counts), 0) AS total_females").
		Scan(&out).Error
	if err != nil {
		return SexDistribution{}, survey.Classify("sex distribution", err)
	}
	return out, nil
}

// Summary computes the dashboard card values for the filtered set.
func (a *Aggregator) Summary(ctx context.Context, f Filter) (Summary, error) {
	var row struct {
		TotalPopulation int
		TotalRecords    int
		TotalMales      int
		TotalFemales    int
		MaxPopulation   int
		Regions         int
	}
	err := a.records(ctx, f).
		Select(`COALESCE(SUM(cd.population), 0) AS total_population,
			COUNT(*) AS total_records,
			COALESCE(SUM(cd.male_counts), 0) AS total_males,
			COALESCE(SUM(cd.female_counts), 0) AS total_females,
			COALESCE(MAX(cd.population), 0) AS max_population,
			COUNT(DISTINCT NULLIF(l.region, '')) AS regions`).
		Joins("LEFT JOIN locations l ON cd.location_id = l.id").
		Scan(&row).Error
	if err != nil {
		return Summary{}, survey.Classify("summary", err)
	}
	s := summarize(row.TotalPopulation, row.TotalRecords, row.TotalMales, row.TotalFemales, row.MaxPopulation)
	s.Regions = row.Regions
	s.Year = f.Year
	return s, nil
}

// LatestYear returns the newest survey year, or 0 for an empty store.
func (a *Aggregator) LatestYear(ctx context.Context) (int, error) {
	var y struct{ Year int }
	if err := a.records(ctx, Filter{}).Select("COALESCE(MAX(cd.date_year), 0) AS year").Scan(&y).Error; err != nil {
		return 0, survey.Classify("latest year", err)
	}
	return y.Year, nil
}

// Latest returns a filter selecting the newest survey year.
func (a *Aggregator) Latest(ctx context.Context) (Filter, error) {
	y, err := a.LatestYear(ctx)
	return Filter{Year: y}, err
}

// Years lists distinct survey years, newest first.
func (a *Aggregator) Years(ctx context.Context) ([]int, error) {
	var out []int
	err := a.records(ctx, Filter{}).Distinct("cd.date_year").Order("cd.date_year DESC").Pluck("cd.date_year", &out).Error
	if err != nil {
		return nil, survey.Classify("years", err)
	}
	return out, nil
}

// Months lists distinct survey months in ascending order, optionally for one year.
func (a *Aggregator) Months(ctx context.Context, year int) ([]int, error) {
	var out []int
	err := a.records(ctx, Filter{Year: year}).Distinct("cd.date_month").Order("cd.date_month").Pluck("cd.date_month", &out).Error
	if err != nil {
		return nil, survey.Classify("months", err)
	}
	return out, nil
}

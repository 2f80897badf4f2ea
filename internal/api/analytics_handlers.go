package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bluecrab/gis-backend/internal/analytics"
	"github.com/bluecrab/gis-backend/internal/survey"
)

// filter reads ?year= and ?month=. year=latest resolves to the newest year.
func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (analytics.Filter, bool) {
	q := r.URL.Query()
	year := q.Get("year")
	latest := strings.EqualFold(year, "latest")
	if latest {
		year = ""
	}
	f, err := analytics.ParseFilter(year, q.Get("month"))
	if err != nil {
		badRequest(w, err.Error())
		return analytics.Filter{}, false
	}
	if latest {
		y, err := h.agg.LatestYear(r.Context())
		if err != nil {
			writeError(w, err)
			return analytics.Filter{}, false
		}
		f.Year = y
	}
	return f, true
}

// filteredRecords loads the full dataset and applies the request filter.
func (h *Handler) filteredRecords(w http.ResponseWriter, r *http.Request) ([]survey.Record, analytics.Filter, bool) {
	f, ok := h.filter(w, r)
	if !ok {
		return nil, f, false
	}
	recs, err := h.store.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return nil, f, false
	}
	return analytics.FilterRecords(recs, f), f, true
}

func (h *Handler) monthlyTotals(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	out, err := h.agg.MonthlyTotals(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []analytics.MonthlyTotal{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) regionalTotals(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	out, err := h.agg.RegionalTotals(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []analytics.RegionalTotal{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) sexDistribution(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	out, err := h.agg.SexDistribution(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	out, err := h.agg.Summary(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) filterOptions(w http.ResponseWriter, r *http.Request) {
	years, err := h.agg.Years(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	months, err := h.agg.Months(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	yearTokens := []string{analytics.AllYears}
	for _, y := range years {
		yearTokens = append(yearTokens, strconv.Itoa(y))
	}
	monthTokens := []string{analytics.AllMonths}
	for _, m := range months {
		monthTokens = append(monthTokens, analytics.MonthName(m))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"years": yearTokens, "months": monthTokens})
}

type distributionResponse struct {
	Bands           map[string]int           `json:"bands"`
	Sizes           []analytics.Bucket       `json:"sizes"`
	Histogram       []analytics.Bucket       `json:"histogram"`
	MonthlyAverages []analytics.MonthAverage `json:"monthly_averages"`
}

func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	recs, _, ok := h.filteredRecords(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, distributionResponse{
		Bands:           analytics.BandCounts(recs),
		Sizes:           analytics.SizeBreakdown(recs),
		Histogram:       analytics.Histogram(recs),
		MonthlyAverages: analytics.MonthlyAverages(recs),
	})
}

type mapResponse struct {
	Center  [2]float64         `json:"center"`
	Markers []analytics.Marker `json:"markers"`
}

func (h *Handler) mapMarkers(w http.ResponseWriter, r *http.Request) {
	recs, f, ok := h.filteredRecords(w, r)
	if !ok {
		return
	}
	markers := analytics.MapMarkers(recs, f.Year)
	if markers == nil {
		markers = []analytics.Marker{}
	}
	writeJSON(w, http.StatusOK, mapResponse{Center: analytics.MapCenter, Markers: markers})
}

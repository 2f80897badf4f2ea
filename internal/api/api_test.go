package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bluecrab/gis-backend/internal/analytics"
	"github.com/bluecrab/gis-backend/internal/api"
	"github.com/bluecrab/gis-backend/internal/config"
	"github.com/bluecrab/gis-backend/internal/db"
	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServer(t *testing.T) (*httptest.Server, *survey.Store) {
	t.Helper()
	gdb, err := db.Open(config.Database{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "crab.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, survey.Migrate(context.Background(), gdb, zap.NewNop()))

	store := survey.NewStore(gdb)
	h := api.New(store, analytics.New(gdb), zap.NewNop())
	srv := httptest.NewServer(api.NewRouter(h, api.Options{
		AllowedOrigins: []string{"http://localhost:5173"},
		Gatherer:       prometheus.NewRegistry(),
	}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func sampleRecord(year, month, male, female int) survey.NewRecord {
	return survey.NewRecord{
		DateMonth:    month,
		DateYear:     year,
		MaleCounts:   male,
		FemaleCounts: female,
		Population:   male + female,
		ObserverName: "Maria Santos",
		Latitude:     10.7012,
		Longitude:    122.9561,
		Region:       "Negros Occidental",
	}
}

// TestRecords_CRUD verifies create, read, update and delete over HTTP.
func TestRecords_CRUD(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/records", sampleRecord(2024, 3, 40, 60))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)

	resp = do(t, http.MethodGet, srv.URL+"/api/records/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec survey.Record
	decodeBody(t, resp, &rec)
	assert.Equal(t, 100, rec.Population)
	assert.Equal(t, "Maria Santos", rec.ObserverName)

	resp = do(t, http.MethodPut, srv.URL+"/api/records/"+created.ID, survey.RecordUpdate{
		DateMonth: 4, DateYear: 2024, MaleCounts: 10, FemaleCounts: 20, Population: 30,
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/records", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []survey.Record
	decodeBody(t, resp, &all)
	require.Len(t, all, 1)
	assert.Equal(t, 30, all[0].Population)

	resp = do(t, http.MethodDelete, srv.URL+"/api/records/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/records/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestRecords_ValidationIs422 verifies that a count mismatch is reported as a
// validation error and nothing is stored.
func TestRecords_ValidationIs422(t *testing.T) {
	srv, store := newServer(t)

	bad := sampleRecord(2024, 3, 40, 60)
	bad.Population = 99
	resp := do(t, http.MethodPost, srv.URL+"/api/records", bad)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body struct {
		Kind string `json:"kind"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "validation", body.Kind)

	recs, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecords_UnknownFieldIs400(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/records", map[string]any{"bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecords_Manual(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/records/manual", survey.ManualEntry{
		Month: 5, Year: 2024, Male: 12, Female: 8,
		ObserverName: "Juan", Latitude: 10.5, Longitude: 122.8,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/records/manual", survey.ManualEntry{
		Month: 5, Year: 2024, ObserverName: "Juan", Latitude: 10.5, Longitude: 122.8,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// TestRecords_BatchReportsPerItem verifies that a failing batch item does not
// stop the others.
func TestRecords_BatchReportsPerItem(t *testing.T) {
	srv, _ := newServer(t)

	bad := sampleRecord(2024, 2, 1, 1)
	bad.Population = 5
	resp := do(t, http.MethodPost, srv.URL+"/api/records/batch", []survey.NewRecord{
		sampleRecord(2024, 1, 1, 1), bad, sampleRecord(2024, 3, 2, 2),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Inserted int `json:"inserted"`
		Failed   int `json:"failed"`
		Items    []struct {
			Index int    `json:"index"`
			Kind  string `json:"kind"`
		} `json:"items"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, 2, out.Inserted)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Items, 3)
	assert.Equal(t, "validation", out.Items[1].Kind)
}

func TestRecords_DeleteSelectedAndAll(t *testing.T) {
	srv, store := newServer(t)
	ctx := context.Background()

	var ids []string
	for m := 1; m <= 3; m++ {
		id, err := store.Insert(ctx, sampleRecord(2024, m, 1, 1))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	resp := do(t, http.MethodPost, srv.URL+"/api/records/delete", map[string][]string{"ids": ids[:2]})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	decodeBody(t, resp, &out)
	assert.EqualValues(t, 2, out.Deleted)

	resp = do(t, http.MethodDelete, srv.URL+"/api/records", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/api/records?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &out)
	assert.EqualValues(t, 1, out.Deleted)

	recs, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReferenceData(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/observers", survey.ObserverInput{Name: "Field Team A"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/locations/resolve", survey.LocationInput{Latitude: 10.7, Longitude: 122.9})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &first)

	resp = do(t, http.MethodPost, srv.URL+"/api/locations/resolve", survey.LocationInput{Latitude: 10.7005, Longitude: 122.9005})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &second)
	assert.Equal(t, first.ID, second.ID)

	resp = do(t, http.MethodGet, srv.URL+"/api/observers", nil)
	var observers []survey.Observer
	decodeBody(t, resp, &observers)
	assert.Len(t, observers, 1)

	resp = do(t, http.MethodGet, srv.URL+"/api/locations", nil)
	var locations []survey.Location
	decodeBody(t, resp, &locations)
	assert.Len(t, locations, 1)
}

const importCSV = "date_month,date_year,male_counts,female_counts,population,observer_name,latitude,longitude\n" +
	"Jan,2024,10,5,15,Team A,10.7,122.9\n" +
	"2,2024,4,6,10,Team B,10.8,123.0\n"

// TestImport_PreviewThenCommit verifies that preview writes nothing and that a
// token can be committed exactly once.
func TestImport_PreviewThenCommit(t *testing.T) {
	srv, store := newServer(t)

	resp, err := http.Post(srv.URL+"/api/imports", "text/csv", strings.NewReader(importCSV))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview struct {
		Token   string           `json:"token"`
		Rows    int              `json:"rows"`
		Preview []map[string]any `json:"preview"`
	}
	decodeBody(t, resp, &preview)
	assert.Equal(t, 2, preview.Rows)
	assert.Len(t, preview.Preview, 2)

	recs, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs, "preview must not write")

	commit := do(t, http.MethodPost, srv.URL+"/api/imports/"+preview.Token+"/commit", nil)
	require.Equal(t, http.StatusOK, commit.StatusCode)

	recs, err = store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	again := do(t, http.MethodPost, srv.URL+"/api/imports/"+preview.Token+"/commit", nil)
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestImport_RejectsMismatch(t *testing.T) {
	srv, _ := newServer(t)

	csv := "date_month,date_year,male_counts,female_counts,population,observer_name,latitude,longitude\n" +
		"1,2024,10,5,16,Team A,10.7,122.9\n"
	resp, err := http.Post(srv.URL+"/api/imports", "text/csv", strings.NewReader(csv))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Details []string `json:"details"`
	}
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Details, "Row 2: Male + Female counts don't equal population")
}

// TestAnalytics verifies the analytics feed, including year=latest.
func TestAnalytics(t *testing.T) {
	srv, store := newServer(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, sampleRecord(2023, 6, 30, 20))
	require.NoError(t, err)
	_, err = store.Insert(ctx, sampleRecord(2024, 1, 40, 60))
	require.NoError(t, err)

	resp := do(t, http.MethodGet, srv.URL+"/api/analytics/summary?year=latest", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum analytics.Summary
	decodeBody(t, resp, &sum)
	assert.Equal(t, 100, sum.TotalPopulation)
	assert.Equal(t, 1, sum.TotalRecords)

	resp = do(t, http.MethodGet, srv.URL+"/api/analytics/monthly", nil)
	var monthly []analytics.MonthlyTotal
	decodeBody(t, resp, &monthly)
	assert.Len(t, monthly, 2)

	resp = do(t, http.MethodGet, srv.URL+"/api/analytics/filters", nil)
	var opts map[string][]string
	decodeBody(t, resp, &opts)
	assert.Equal(t, []string{analytics.AllYears, "2024", "2023"}, opts["years"])

	resp = do(t, http.MethodGet, srv.URL+"/api/analytics/distribution", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dist struct {
		Sizes []analytics.Bucket `json:"sizes"`
	}
	decodeBody(t, resp, &dist)
	require.Len(t, dist.Sizes, 4)
	assert.Equal(t, 1, dist.Sizes[0].Count, "population 50 is small")
	assert.Equal(t, 1, dist.Sizes[1].Count, "population 100 is medium")

	resp = do(t, http.MethodGet, srv.URL+"/api/analytics/map?year=2024", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m struct {
		Center  [2]float64         `json:"center"`
		Markers []analytics.Marker `json:"markers"`
	}
	decodeBody(t, resp, &m)
	assert.Equal(t, analytics.MapCenter, m.Center)
	assert.Len(t, m.Markers, 1)

	resp = do(t, http.MethodGet, srv.URL+"/api/analytics/summary?year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

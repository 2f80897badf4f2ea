package surveyimport_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/bluecrab/gis-backend/internal/surveyimport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const header = "date_month,date_year,male_counts,female_counts,population,observer_name,latitude,longitude\n"

func validCSV(n int) string {
	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,2024,%d,%d,%d,Team %d,10.7,122.9\n", i%12+1, i, 10, i+10, i)
	}
	return b.String()
}

func parse(t *testing.T, csv string) []surveyimport.RawRow {
	t.Helper()
	rows, err := surveyimport.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return rows
}

// fakeInserter records what Commit hands to the store.
type fakeInserter struct {
	got []survey.NewRecord
}

func (f *fakeInserter) InsertMany(_ context.Context, recs []survey.NewRecord) survey.BatchResult {
	f.got = append(f.got, recs...)
	res := survey.BatchResult{}
	for i := range recs {
		res.Items = append(res.Items, survey.ItemResult{Index: i, ID: fmt.Sprintf("id-%d", i)})
	}
	return res
}

// TestParseCSV_BOMAndPadding verifies BOM stripping and short-row padding.
func TestParseCSV_BOMAndPadding(t *testing.T) {
	rows := parse(t, "\ufeffa,b,c\n1,2\n\n3,4,5\n")
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["a"])
	assert.Equal(t, "", rows[0]["c"])
	assert.Equal(t, "5", rows[1]["c"])
}

// TestParseCSV_HeaderOnly verifies that a file without data rows is rejected.
func TestParseCSV_HeaderOnly(t *testing.T) {
	_, err := surveyimport.ParseCSV(strings.NewReader(header))
	assert.ErrorIs(t, err, surveyimport.ErrNoRows)
}

// TestMonthToken verifies month-name mapping and pass-through.
func TestMonthToken(t *testing.T) {
	cases := map[string]string{
		"jan":         "1",
		" January ":   "1",
		"SEP":         "9",
		"september":   "9",
		"May":         "5",
		"december":    "12",
		"7":           "7",
		"Sept":        "Sept",
		"not-a-month": "not-a-month",
	}
	for in, want := range cases {
		assert.Equal(t, want, surveyimport.MonthToken(in), in)
	}
}

// TestValidate_MissingColumns verifies that every missing column is listed.
func TestValidate_MissingColumns(t *testing.T) {
	rows := parse(t, "date_month,date_year,male_counts,female_counts,observer_name,latitude\n1,2024,1,1,x,10\n")

	_, err := surveyimport.ValidateAndPreview(rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, survey.ErrValidation)
	assert.Equal(t, []string{"population", "longitude"}, survey.Details(err))
	assert.Contains(t, err.Error(), "population")
}

// TestValidate_TrimsHeaders verifies that padded column names are accepted.
func TestValidate_TrimsHeaders(t *testing.T) {
	csv := " date_month , date_year,male_counts ,female_counts,population,observer_name,latitude,longitude \n" +
		"Mar,2024,1,2,3,Ana,10.7,122.9\n"
	v, err := surveyimport.ValidateAndPreview(parse(t, csv))
	require.NoError(t, err)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, 3, v.Rows[0].DateMonth)
	assert.InDelta(t, 122.9, v.Rows[0].Longitude, 1e-9)
}

// TestValidate_InvalidNumber verifies the first bad value is reported with a
// row number that counts the header as row 1.
func TestValidate_InvalidNumber(t *testing.T) {
	csv := header +
		"1,2024,1,1,2,a,10,122\n" +
		"Foo,2024,1,1,2,b,10,122\n" +
		"2,2024,x,1,2,c,10,122\n"

	_, err := surveyimport.ValidateAndPreview(parse(t, csv))
	require.Error(t, err)
	assert.ErrorIs(t, err, survey.ErrValidation)
	assert.Contains(t, err.Error(), "Invalid value in row 3, column 'date_month': 'Foo'")
}

// TestValidate_BlankNumber verifies that an empty numeric cell is invalid.
func TestValidate_BlankNumber(t *testing.T) {
	csv := header + "1,2024,1,1,,a,10,122\n"
	_, err := surveyimport.ValidateAndPreview(parse(t, csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column 'population': ''")
}

// TestValidate_OneBadRowOfEleven verifies that a single sum violation fails
// the whole upload and is the only violation reported.
func TestValidate_OneBadRowOfEleven(t *testing.T) {
	csv := validCSV(10) + "4,2024,5,5,11,Bad,10.7,122.9\n"

	_, err := surveyimport.ValidateAndPreview(parse(t, csv))
	require.Error(t, err)
	assert.Equal(t, []string{"Row 12: Male + Female counts don't equal population"}, survey.Details(err))
}

// TestValidate_CountOutOfRange verifies that counts too large for an INTEGER
// column fail the gate instead of wrapping when converted.
func TestValidate_CountOutOfRange(t *testing.T) {
	csv := validCSV(1) + "1,2024,1e19,0,1e19,Big,10.7,122.9\n"

	_, err := surveyimport.ValidateAndPreview(parse(t, csv))
	require.ErrorIs(t, err, survey.ErrValidation)
	assert.Equal(t, []string{
		"Row 3: male_counts is out of range",
		"Row 3: population is out of range",
	}, survey.Details(err))

	csv = validCSV(1) + "1,2024,2147483648,0,2147483648,Big,10.7,122.9\n"
	_, err = surveyimport.ValidateAndPreview(parse(t, csv))
	require.ErrorIs(t, err, survey.ErrValidation)
}

// TestValidate_ViolationSummary verifies the first five violations are listed
// followed by a count of the rest.
func TestValidate_ViolationSummary(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 8; i++ {
		b.WriteString("13,2024,1,1,2,a,10,122\n")
	}

	_, err := surveyimport.ValidateAndPreview(parse(t, b.String()))
	require.Error(t, err)
	details := survey.Details(err)
	require.Len(t, details, 6)
	assert.Equal(t, "Row 2: Invalid month value", details[0])
	assert.Equal(t, "... and 3 more errors", details[5])
}

// TestValidate_Preview verifies the preview is capped at five rows while the
// full set is kept for commit.
func TestValidate_Preview(t *testing.T) {
	v, err := surveyimport.ValidateAndPreview(parse(t, validCSV(8)))
	require.NoError(t, err)
	assert.Len(t, v.Rows, 8)
	assert.Len(t, v.Preview(), surveyimport.PreviewSize)
	assert.Equal(t, "Team 0", v.Preview()[0].ObserverName)
}

// TestValidate_OptionalColumns verifies region and location name are carried.
func TestValidate_OptionalColumns(t *testing.T) {
	csv := "date_month,date_year,male_counts,female_counts,population,observer_name,latitude,longitude,region,location_name,observer_email\n" +
		"jun,2023,4,6,10,Ana,10.1,123.1,Negros Oriental,Dumaguete,ana@example.org\n"
	v, err := surveyimport.ValidateAndPreview(parse(t, csv))
	require.NoError(t, err)

	rec := v.Rows[0].Record()
	assert.Equal(t, 6, rec.DateMonth)
	assert.Equal(t, "Negros Oriental", rec.Region)
	assert.Equal(t, "Dumaguete", rec.LocationName)
	assert.Equal(t, "ana@example.org", rec.ObserverEmail)
}

// TestCommit verifies every validated row reaches the store in order.
func TestCommit(t *testing.T) {
	v, err := surveyimport.ValidateAndPreview(parse(t, validCSV(3)))
	require.NoError(t, err)

	ins := &fakeInserter{}
	res := surveyimport.Commit(context.Background(), ins, v)
	assert.Equal(t, 3, res.Inserted())
	require.Len(t, ins.got, 3)
	assert.Equal(t, "Team 2", ins.got[2].ObserverName)
	assert.Equal(t, 12, ins.got[2].Population)
}

// TestRun_DryRunAndConfirm verifies that Run only commits with Confirm.
func TestRun_DryRunAndConfirm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(validCSV(7)), 0o600))

	ins := &fakeInserter{}
	rep, err := surveyimport.Run(context.Background(), ins, surveyimport.Config{CSVPath: path}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 7, rep.Rows)
	assert.Empty(t, ins.got)

	rep, err = surveyimport.Run(context.Background(), ins, surveyimport.Config{CSVPath: path, Confirm: true}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Inserted)
	assert.Len(t, ins.got, 7)

	var out strings.Builder
	require.NoError(t, rep.Write(&out))
	assert.Contains(t, out.String(), "Imported 7 of 7 rows.")
}

// TestRun_RejectsInvalidFile verifies nothing is committed for a bad file.
func TestRun_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	csv := "date_month,date_year,male_counts,female_counts,observer_name,latitude,longitude\n1,2024,1,1,a,10,122\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	ins := &fakeInserter{}
	_, err := surveyimport.Run(context.Background(), ins, surveyimport.Config{CSVPath: path, Confirm: true}, zap.NewNop())
	assert.ErrorIs(t, err, survey.ErrValidation)
	assert.Empty(t, ins.got)
}

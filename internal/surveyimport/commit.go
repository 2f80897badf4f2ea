package surveyimport

import (
	"context"

	"github.com/bluecrab/gis-backend/internal/survey"
)

// Inserter is the write side Commit needs.
type Inserter interface {
	InsertMany(ctx context.Context, records []survey.NewRecord) survey.BatchResult
}

// Commit hands every validated row to the store. Insertion is per row and not
// atomic; the result lists each row's outcome in file order.
func Commit(ctx context.Context, store Inserter, v *Validated) survey.BatchResult {
	recs := make([]survey.NewRecord, len(v.Rows))
	for i, r := range v.Rows {
		recs[i] = r.Record()
	}
	return store.InsertMany(ctx, recs)
}

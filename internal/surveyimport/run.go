package surveyimport

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bluecrab/gis-backend/internal/survey"
	"go.uber.org/zap"
)

type Config struct {
	CSVPath string
	// Confirm commits the validated rows. Without it Run only validates.
	Confirm bool
}

// Report summarizes one import run.
type Report struct {
	Rows     int
	Preview  []Row
	DryRun   bool
	Inserted int
	Failures []survey.ItemResult
}

// Run parses and validates cfg.CSVPath and, when confirmed, commits it.
func Run(ctx context.Context, store Inserter, cfg Config, log *zap.Logger) (Report, error) {
	log = log.Named("import")

	raw, err := ParseFile(cfg.CSVPath)
	if err != nil {
		return Report{}, err
	}
	v, err := ValidateAndPreview(raw)
	if err != nil {
		log.Warn("csv rejected", zap.String("file", cfg.CSVPath), zap.Error(err))
		return Report{}, err
	}

	rep := Report{Rows: len(v.Rows), Preview: v.Preview(), DryRun: !cfg.Confirm}
	if !cfg.Confirm {
		log.Info("dry run; nothing committed", zap.Int("rows", rep.Rows))
		return rep, nil
	}

	res := Commit(ctx, store, v)
	rep.Inserted = res.Inserted()
	rep.Failures = res.Failures()
	log.Info("csv committed",
		zap.String("file", cfg.CSVPath),
		zap.Int("inserted", rep.Inserted),
		zap.Int("failed", len(rep.Failures)))
	return rep, nil
}

// Write prints the preview table and outcome.
func (r Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tYEAR\tMALE\tFEMALE\tPOPULATION\tOBSERVER\tLAT\tLON")
	for _, p := range r.Preview {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\t%.4f\t%.4f\n",
			p.DateMonth, p.DateYear, p.MaleCounts, p.FemaleCounts, p.Population,
			p.ObserverName, p.Latitude, p.Longitude)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.DryRun {
		_, err := fmt.Fprintf(w, "\n%d rows valid (showing %d). Re-run with -confirm to import.\n", r.Rows, len(r.Preview))
		return err
	}
	fmt.Fprintf(w, "\nImported %d of %d rows.\n", r.Inserted, r.Rows)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  row %d: %v\n", f.Index+2, f.Err)
	}
	return nil
}

package seeds

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/bluecrab/gis-backend/internal/survey"
	"go.uber.org/zap"
)

// DefaultRecords is the number of demo records seeded when none is given.
const DefaultRecords = 120

type site struct {
	name, region string
	lat, lon     float64
}

// Survey sites along the Negros coast.
var sites = []site{
	{"Bacolod Reclamation", "Negros Occidental", 10.6765, 122.9509},
	{"Pulupandan Estuary", "Negros Occidental", 10.5206, 122.8028},
	{"Hinigaran Mangroves", "Negros Occidental", 10.2697, 122.8503},
	{"Cadiz Tidal Flats", "Negros Occidental", 10.9514, 123.3050},
	{"Sagay Marine Reserve", "Negros Occidental", 10.9440, 123.4247},
	{"Bais Bay", "Negros Oriental", 9.5910, 123.1225},
	{"Dumaguete Shoreline", "Negros Oriental", 9.3068, 123.3054},
	{"Manjuyod Sandbar", "Negros Oriental", 9.6870, 123.1561},
}

var observers = []string{
	"Maria Santos", "Juan dela Cruz", "BFAR Region VI", "Silliman Marine Lab",
}

// Demo returns n deterministic survey records spread over the sites, the last
// three years and all twelve months.
func Demo(n int) []survey.NewRecord {
	rng := rand.New(rand.NewPCG(2024, 6))
	out := make([]survey.NewRecord, 0, n)
	for i := range n {
		s := sites[i%len(sites)]
		male := 10 + rng.IntN(300)
		female := 10 + rng.IntN(300)
		out = append(out, survey.NewRecord{
			DateMonth:    i%12 + 1,
			DateYear:     2022 + (i/12)%3,
			MaleCounts:   male,
			FemaleCounts: female,
			Population:   male + female,
			ObserverName: observers[rng.IntN(len(observers))],
			Latitude:     s.lat,
			Longitude:    s.lon,
			LocationName: s.name,
			Region:       s.region,
		})
	}
	return out
}

// SeedAll inserts n demo records. Locations collapse onto one row per site.
func SeedAll(ctx context.Context, store *survey.Store, n int, log *zap.Logger) error {
	if n <= 0 {
		n = DefaultRecords
	}
	res := store.InsertMany(ctx, Demo(n))
	if failed := res.Failures(); len(failed) > 0 {
		return fmt.Errorf("seed: %d of %d records failed, first: %w", len(failed), n, failed[0].Err)
	}
	log.Info("seeded demo records", zap.Int("records", res.Inserted()))
	return nil
}

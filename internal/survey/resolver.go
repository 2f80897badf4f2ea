package survey

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocationTolerance is the per-axis distance in degrees (~100 m) under which
// two coordinates are treated as the same place.
const LocationTolerance = 0.001

func newID() string { return uuid.NewString() }

// ResolveObserver upserts by ID when one is given; otherwise it always
// creates a new observer. Names are never merged.
func (s *Store) ResolveObserver(ctx context.Context, in ObserverInput) (id string, err error) {
	defer s.observe("resolve_observer", time.Now(), &err)
	id, err = resolveObserver(s.db.WithContext(ctx), in)
	return id, wrapStorage("resolve observer", err)
}

// ResolveLocation returns the first stored location within LocationTolerance
// of the coordinate, inserting a new one when none matches.
func (s *Store) ResolveLocation(ctx context.Context, in LocationInput) (id string, err error) {
	defer s.observe("resolve_location", time.Now(), &err)
	id, err = resolveLocation(s.db.WithContext(ctx), in)
	return id, wrapStorage("resolve location", err)
}

func resolveObserver(tx *gorm.DB, in ObserverInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", validationError("resolve observer", "observer name is required")
	}

	o := Observer{
		ID:           in.ID,
		Name:         name,
		Email:        strings.TrimSpace(in.Email),
		Organization: strings.TrimSpace(in.Organization),
	}
	if o.ID == "" {
		o.ID = newID()
		if err := tx.Create(&o).Error; err != nil {
			return "", err
		}
		return o.ID, nil
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "organization", "created_at"}),
	}).Create(&o).Error
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

func resolveLocation(tx *gorm.DB, in LocationInput) (string, error) {
	var matches []Location
	err := tx.
		Where("ABS(latitude - ?) < ? AND ABS(longitude - ?) < ?",
			in.Latitude, LocationTolerance, in.Longitude, LocationTolerance).
		Order("created_at, id").
		Limit(1).
		Find(&matches).Error
	if err != nil {
		return "", err
	}
	if len(matches) > 0 {
		return matches[0].ID, nil
	}

	loc := Location{
		ID:           newID(),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		LocationName: strings.TrimSpace(in.Name),
		Region:       strings.TrimSpace(in.Region),
	}
	if err := tx.Create(&loc).Error; err != nil {
		return "", err
	}
	return loc.ID, nil
}

func requireRow(tx *gorm.DB, model any, entity, id string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return validationError("insert", entity+" "+id+" does not exist")
	}
	return nil
}

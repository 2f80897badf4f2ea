package survey

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder receives one observation per store operation.
type Recorder interface {
	Observe(op string, err error, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, error, time.Duration) {}

// Store is the survey data layer. It holds no state beyond the pooled gorm
// handle; every method runs in its own connection or transaction scope.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	rec Recorder
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.rec = r }
}

func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, log: zap.NewNop(), rec: nopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("store")
	return s
}

// DB exposes the underlying handle for read-side packages.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) observe(op string, start time.Time, errp *error) {
	err := *errp
	s.rec.Observe(op, err, time.Since(start))
	if err != nil && KindOf(err) == "storage" {
		s.log.Error("storage operation failed", zap.String("op", op), zap.Error(err))
	}
}

// Insert validates r, resolves its observer and location, and writes it.
// No row is touched when validation fails.
func (s *Store) Insert(ctx context.Context, r NewRecord) (id string, err error) {
	defer s.observe("insert", time.Now(), &err)

	if err := r.Validate(); err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		observerID := r.ObserverID
		if observerID == "" {
			oid, err := resolveObserver(tx, ObserverInput{
				Name:         r.ObserverName,
				Email:        r.ObserverEmail,
				Organization: r.ObserverOrganization,
			})
			if err != nil {
				return err
			}
			observerID = oid
		} else if err := requireRow(tx, &Observer{}, "observer", observerID); err != nil {
			return err
		}

		locationID := r.LocationID
		if locationID == "" {
			lid, err := resolveLocation(tx, LocationInput{
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
				Name:      r.LocationName,
				Region:    r.Region,
			})
			if err != nil {
				return err
			}
			locationID = lid
		} else if err := requireRow(tx, &Location{}, "location", locationID); err != nil {
			return err
		}

		row := CrabData{
			ID:           r.ID,
			DateMonth:    r.DateMonth,
			DateYear:     r.DateYear,
			MaleCounts:   r.MaleCounts,
			FemaleCounts: r.FemaleCounts,
			Population:   r.Population,
			ObserverID:   observerID,
			LocationID:   locationID,
		}
		if row.ID == "" {
			row.ID = newID()
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return "", wrapStorage("insert", err)
	}
	return id, nil
}

// ItemResult is the outcome of one element of a batch insert.
type ItemResult struct {
	Index int
	ID    string
	Err   error
}

// BatchResult reports every item of InsertMany in input order.
type BatchResult struct {
	Items []ItemResult
}

func (b BatchResult) Inserted() int {
	n := 0
	for _, it := range b.Items {
		if it.Err == nil {
			n++
		}
	}
	return n
}

func (b BatchResult) Failures() []ItemResult {
	var out []ItemResult
	for _, it := range b.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// InsertMany inserts each record independently. A failing item does not undo
// earlier ones and does not stop later ones.
func (s *Store) InsertMany(ctx context.Context, records []NewRecord) BatchResult {
	res := BatchResult{Items: make([]ItemResult, 0, len(records))}
	for i, r := range records {
		id, err := s.Insert(ctx, r)
		res.Items = append(res.Items, ItemResult{Index: i, ID: id, Err: err})
	}
	if failed := len(res.Items) - res.Inserted(); failed > 0 {
		s.log.Warn("batch insert finished with failures",
			zap.Int("inserted", res.Inserted()), zap.Int("failed", failed))
	}
	return res
}

// Update replaces the date and count fields of record id.
func (s *Store) Update(ctx context.Context, id string, u RecordUpdate) (err error) {
	defer s.observe("update", time.Now(), &err)

	if err := u.Validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&CrabData{}).Where("id = ?", id).Updates(map[string]any{
		"date_month":    u.DateMonth,
		"date_year":     u.DateYear,
		"male_counts":   u.MaleCounts,
		"female_counts": u.FemaleCounts,
		"population":    u.Population,
	})
	if res.Error != nil {
		return wrapStorage("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("update", "record", id)
	}
	return nil
}

func joinedRecords(tx *gorm.DB) *gorm.DB {
	return tx.Table("crab_data AS cd").
		Select(`cd.id, cd.date_month, cd.date_year, cd.male_counts, cd.female_counts, cd.population,
			COALESCE(cd.observer_id, '') AS observer_id, COALESCE(cd.location_id, '') AS location_id, cd.created_at,
			COALESCE(o.name, '') AS observer_name,
			COALESCE(o.email, '') AS observer_email,
			COALESCE(o.organization, '') AS observer_organization,
			COALESCE(l.latitude, 0) AS latitude,
			COALESCE(l.longitude, 0) AS longitude,
			COALESCE(l.location_name, '') AS location_name,
			COALESCE(l.region, '') AS region`).
		Joins("LEFT JOIN observers o ON cd.observer_id = o.id").
		Joins("LEFT JOIN locations l ON cd.location_id = l.id")
}

func (s *Store) GetByID(ctx context.Context, id string) (rec Record, err error) {
	defer s.observe("get", time.Now(), &err)

	var rows []Record
	if err := joinedRecords(s.db.WithContext(ctx)).Where("cd.id = ?", id).Scan(&rows).Error; err != nil {
		return Record{}, wrapStorage("get record", err)
	}
	if len(rows) == 0 {
		return Record{}, notFoundError("get record", "record", id)
	}
	return rows[0], nil
}

// GetAll returns every record, newest survey period first.
func (s *Store) GetAll(ctx context.Context) (recs []Record, err error) {
	defer s.observe("list", time.Now(), &err)

	err = joinedRecords(s.db.WithContext(ctx)).
		Order("cd.date_year DESC, cd.date_month DESC, cd.created_at DESC, cd.id").
		Scan(&recs).Error
	if err != nil {
		return nil, wrapStorage("list records", err)
	}
	return recs, nil
}

func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&CrabData{})
	if res.Error != nil {
		return wrapStorage("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("delete", "record", id)
	}
	return nil
}

// DeleteMany removes the selected records and reports how many existed.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (n int64, err error) {
	defer s.observe("delete_many", time.Now(), &err)

	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&CrabData{})
	if res.Error != nil {
		return 0, wrapStorage("delete selected", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAll removes every survey record. Observers and locations stay.
func (s *Store) DeleteAll(ctx context.Context) (n int64, err error) {
	defer s.observe("delete_all", time.Now(), &err)

	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CrabData{})
	if res.Error != nil {
		return 0, wrapStorage("delete all", res.Error)
	}
	s.log.Info("all survey records deleted", zap.Int64("rows", res.RowsAffected))
	return res.RowsAffected, nil
}

func (s *Store) ListObservers(ctx context.Context) (out []Observer, err error) {
	defer s.observe("list_observers", time.Now(), &err)

	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, wrapStorage("list observers", err)
	}
	return out, nil
}

func (s *Store) ListLocations(ctx context.Context) (out []Location, err error) {
	defer s.observe("list_locations", time.Now(), &err)

	if err := s.db.WithContext(ctx).Order("location_name").Find(&out).Error; err != nil {
		return nil, wrapStorage("list locations", err)
	}
	return out, nil
}

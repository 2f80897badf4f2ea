package survey

import "time"

// Observer is the person or team that collected a survey record.
type Observer struct {
	ID           string    `gorm:"primaryKey;column:id" json:"id"`
	Name         string    `gorm:"column:name;not null" json:"name"`
	Email        string    `gorm:"column:email" json:"email,omitempty"`
	Organization string    `gorm:"column:organization" json:"organization,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Observer) TableName() string { return "observers" }

// Location is a surveyed coordinate. Records within LocationTolerance degrees
// on both axes share a single Location row.
type Location struct {
	ID           string    `gorm:"primaryKey;column:id" json:"id"`
	Latitude     float64   `gorm:"column:latitude;type:double precision;not null" json:"latitude"`
	Longitude    float64   `gorm:"column:longitude;type:double precision;not null" json:"longitude"`
	LocationName string    `gorm:"column:location_name" json:"location_name,omitempty"`
	Region       string    `gorm:"column:region" json:"region,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Location) TableName() string { return "locations" }

// CrabData is a stored survey row as it sits in the crab_data table.
type CrabData struct {
	ID           string    `gorm:"primaryKey;column:id"`
	DateMonth    int       `gorm:"column:date_month"`
	DateYear     int       `gorm:"column:date_year"`
	MaleCounts   int       `gorm:"column:male_counts"`
	FemaleCounts int       `gorm:"column:female_counts"`
	Population   int       `gorm:"column:population"`
	ObserverID   string    `gorm:"column:observer_id"`
	LocationID   string    `gorm:"column:location_id"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (CrabData) TableName() string { return "crab_data" }

// Record is the flattened read view of a survey row joined with its observer
// and location.
type Record struct {
	ID                   string    `json:"id"`
	DateMonth            int       `json:"date_month"`
	DateYear             int       `json:"date_year"`
	MaleCounts           int       `json:"male_counts"`
	FemaleCounts         int       `json:"female_counts"`
	Population           int       `json:"population"`
	ObserverID           string    `json:"observer_id"`
	LocationID           string    `json:"location_id"`
	CreatedAt            time.Time `json:"created_at"`
	ObserverName         string    `json:"observer_name"`
	ObserverEmail        string    `json:"observer_email,omitempty"`
	ObserverOrganization string    `json:"observer_organization,omitempty"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	LocationName         string    `json:"location_name,omitempty"`
	Region               string    `json:"region,omitempty"`
}

// NewRecord is the input to Insert. When ObserverID or LocationID is empty
// the observer or location is resolved from the descriptive fields.
type NewRecord struct {
	ID           string `json:"id,omitempty"`
	DateMonth    int    `json:"date_month"`
	DateYear     int    `json:"date_year"`
	MaleCounts   int    `json:"male_counts"`
	FemaleCounts int    `json:"female_counts"`
	Population   int    `json:"population"`

	ObserverID           string `json:"observer_id,omitempty"`
	ObserverName         string `json:"observer_name,omitempty"`
	ObserverEmail        string `json:"observer_email,omitempty"`
	ObserverOrganization string `json:"observer_organization,omitempty"`

	LocationID   string  `json:"location_id,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName string  `json:"location_name,omitempty"`
	Region       string  `json:"region,omitempty"`
}

// RecordUpdate carries the full set of mutable fields. Observer and location
// cannot be changed after creation.
type RecordUpdate struct {
	DateMonth    int `json:"date_month"`
	DateYear     int `json:"date_year"`
	MaleCounts   int `json:"male_counts"`
	FemaleCounts int `json:"female_counts"`
	Population   int `json:"population"`
}

// ObserverInput describes an observer to resolve. A non-empty ID turns the
// call into an upsert of that row.
type ObserverInput struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// LocationInput describes a coordinate to resolve.
type LocationInput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"location_name,omitempty"`
	Region    string  `json:"region,omitempty"`
}

// ManualEntry is a single hand-entered survey. Population is derived.
type ManualEntry struct {
	Month        int     `json:"month"`
	Year         int     `json:"year"`
	Male         int     `json:"male"`
	Female       int     `json:"female"`
	ObserverName string  `json:"observer_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName string  `json:"location_name,omitempty"`
	Region       string  `json:"region,omitempty"`
}

// Record converts the entry into a NewRecord with population = male + female.
func (m ManualEntry) Record() (NewRecord, error) {
	pop := m.Male + m.Female
	if pop <= 0 {
		return NewRecord{}, validationError("manual entry", "total population must be greater than 0")
	}
	return NewRecord{
		DateMonth:    m.Month,
		DateYear:     m.Year,
		MaleCounts:   m.Male,
		FemaleCounts: m.Female,
		Population:   pop,
		ObserverName: m.ObserverName,
		Latitude:     m.Latitude,
		Longitude:    m.Longitude,
		LocationName: m.LocationName,
		Region:       m.Region,
	}, nil
}

package models

import "time"

// Incident is a historical crime record. Rows are written once at data-load
// time and never mutated; both the grid aggregation and the classifier
// training corpus read from this table.
type Incident struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	CrimeType     string    `gorm:"column:crime_type" json:"crime_type"`
	Latitude      float64   `gorm:"column:latitude" json:"latitude"`
	Longitude     float64   `gorm:"column:longitude" json:"longitude"`
	OccurredAt    time.Time `gorm:"column:occurred_at" json:"occurred_at"`
	TimeOfDay     string    `gorm:"column:time_of_day" json:"time_of_day"`
	Severity      int       `gorm:"column:severity" json:"severity"`
	PoliceStation string    `gorm:"column:police_station" json:"police_station"`
}

func (Incident) TableName() string { return "incidents" }

package models

import "time"

// Feedback outcome values recorded after processing. Processed is terminal:
// once set, the event is never picked up again.
const (
	FeedbackOutcomeApplied   = "applied"
	FeedbackOutcomeNoOp      = "no_op"
	FeedbackOutcomeAmbiguous = "ambiguous"
)

type FeedbackEvent struct {
	ID          string     `gorm:"column:id;primaryKey" json:"id"`
	UserID      string     `gorm:"column:user_id" json:"user_id"`
	Feedback    string     `gorm:"column:feedback" json:"feedback"`
	Suggestion  string     `gorm:"column:suggestion" json:"suggestion"`
	Lat         float64    `gorm:"column:lat" json:"lat"`
	Lon         float64    `gorm:"column:lon" json:"lon"`
	Time        string     `gorm:"column:time" json:"time"`
	CrimeType   string     `gorm:"column:crime_type" json:"crime_type"`
	Processed   bool       `gorm:"column:processed" json:"processed"`
	Outcome     string     `gorm:"column:outcome" json:"outcome"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (FeedbackEvent) TableName() string { return "feedback_events" }

// SynthesizedRecord is an incident-shaped training correction derived from
// a Bad feedback event. It feeds the retraining corpus only; it is never
// folded into the grid aggregation.
type SynthesizedRecord struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	SourceEventID string    `gorm:"column:source_event_id" json:"source_event_id"`
	CrimeType     string    `gorm:"column:crime_type" json:"crime_type"`
	Latitude      float64   `gorm:"column:latitude" json:"latitude"`
	Longitude     float64   `gorm:"column:longitude" json:"longitude"`
	OccurredAt    time.Time `gorm:"column:occurred_at" json:"occurred_at"`
	TimeOfDay     string    `gorm:"column:time_of_day" json:"time_of_day"`
	TimeBucket    string    `gorm:"column:time_bucket" json:"time_bucket"`
	Severity      int       `gorm:"column:severity" json:"severity"`
	PoliceStation string    `gorm:"column:police_station" json:"police_station"`
	FromFeedback  bool      `gorm:"column:from_feedback;default:true" json:"from_feedback"`
	Confidence    string    `gorm:"column:confidence" json:"confidence"`
	Applied       bool      `gorm:"column:applied" json:"applied"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SynthesizedRecord) TableName() string { return "synthesized_records" }

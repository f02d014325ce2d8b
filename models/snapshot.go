package models

import "time"

// ModelSnapshotRow is a persisted classifier snapshot: weights and encoder
// tables serialized as one JSON payload under a monotonically increasing
// version. Rows are immutable; a new model is a new row, never an update.
type ModelSnapshotRow struct {
	Version   int64     `gorm:"column:version;primaryKey;autoIncrement" json:"version"`
	Accuracy  float64   `gorm:"column:accuracy" json:"accuracy"`
	Payload   []byte    `gorm:"column:payload;type:jsonb" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ModelSnapshotRow) TableName() string { return "model_snapshots" }

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"safety-prediction-api/models"

	"gorm.io/gorm"
)

var ErrNoSnapshot = errors.New("no classifier snapshot loaded")

const modelChannel = "safety:model"

// ModelStore owns the active classifier snapshot pointer. Readers capture
// the pointer once per request; publication is a single atomic swap, so a
// reader never observes a half-built model.
type ModelStore struct {
	db     *gorm.DB
	cache  *CacheService
	active atomic.Pointer[ClassifierSnapshot]
}

func NewModelStore(db *gorm.DB, cache *CacheService) *ModelStore {
	return &ModelStore{db: db, cache: cache}
}

// Active returns the current snapshot, or nil when none is loaded.
func (s *ModelStore) Active() *ClassifierSnapshot {
	return s.active.Load()
}

// Publish persists the snapshot as a new versioned row and then swaps the
// active pointer. If the insert fails the swap never happens and the prior
// snapshot stays authoritative. The new version is announced on Redis for
// other replicas.
func (s *ModelStore) Publish(ctx context.Context, snap *ClassifierSnapshot) error {
	if len(snap.Weights) != FeatureCount {
		return fmt.Errorf("snapshot has %d weights, want %d", len(snap.Weights), FeatureCount)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot payload: %w", err)
	}

	row := models.ModelSnapshotRow{
		Accuracy: snap.Accuracy,
		Payload:  payload,
	}
	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
		snap.Version = row.Version
	} else {
		// In-memory mode (tests): versions still increase monotonically.
		prev := s.active.Load()
		if prev != nil {
			snap.Version = prev.Version + 1
		} else {
			snap.Version = 1
		}
	}

	s.active.Store(snap)

	if s.cache != nil {
		if err := s.cache.Publish(ctx, modelChannel, map[string]interface{}{
			"version":  snap.Version,
			"accuracy": snap.Accuracy,
		}); err != nil {
			log.Printf("model version announce failed: %v", err)
		}
	}
	return nil
}

// LoadLatest reads the highest-version persisted snapshot and makes it
// active. Returns ErrNoSnapshot when the table is empty.
func (s *ModelStore) LoadLatest(ctx context.Context) error {
	if s.db == nil {
		return ErrNoSnapshot
	}

	var row models.ModelSnapshotRow
	err := s.db.WithContext(ctx).Order("version DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoSnapshot
	}
	if err != nil {
		return fmt.Errorf("load snapshot row: %w", err)
	}

	var snap ClassifierSnapshot
	if err := json.Unmarshal(row.Payload, &snap); err != nil {
		return fmt.Errorf("decode snapshot payload: %w", err)
	}
	if snap.Encoder == nil || len(snap.Weights) != FeatureCount {
		return fmt.Errorf("snapshot v%d payload is inconsistent with the current feature set", row.Version)
	}
	snap.Version = row.Version
	snap.Accuracy = row.Accuracy

	s.active.Store(&snap)
	log.Printf("classifier snapshot v%d loaded (accuracy %.3f)", snap.Version, snap.Accuracy)
	return nil
}

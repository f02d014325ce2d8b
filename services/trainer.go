package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"safety-prediction-api/config"
	"safety-prediction-api/models"

	"gorm.io/gorm"
)

// ErrRetrainRunning signals that a job is already in flight. Callers queue
// their batch for the next run instead of retrying.
var ErrRetrainRunning = errors.New("retraining job already running")

// Rejection reasons reported by Apply. A rejected run never touches the
// active snapshot.
const (
	RejectInsufficientData     = "insufficient_data"
	RejectValidationRegression = "validation_regression"
	RejectEncoderMismatch      = "encoder_mismatch"
	RejectTimeout              = "timeout"
)

type ApplyResult struct {
	Accepted bool    `json:"accepted"`
	Version  int64   `json:"version,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// ModelUpdater merges synthesized records into the training corpus,
// retrains a candidate snapshot, validates it, and publishes on success.
// The mutex enforces the single-writer rule: at most one retraining job at
// a time.
type ModelUpdater struct {
	db    *gorm.DB
	store *ModelStore
	cfg   config.RetrainConfig
	mu    sync.Mutex
}

func NewModelUpdater(db *gorm.DB, store *ModelStore, cfg config.RetrainConfig) *ModelUpdater {
	return &ModelUpdater{db: db, store: store, cfg: cfg}
}

// Apply runs one retraining job over the full corpus (historical incidents
// plus previously applied synthesized records) extended by the batch. The
// candidate must not regress validation accuracy beyond the configured
// tolerance relative to the active snapshot or it is discarded.
func (u *ModelUpdater) Apply(ctx context.Context, batch []models.SynthesizedRecord) (ApplyResult, error) {
	if !u.mu.TryLock() {
		return ApplyResult{}, ErrRetrainRunning
	}
	defer u.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(u.cfg.TimeoutSec)*time.Second)
	defer cancel()

	corpus, err := u.loadCorpus(ctx)
	if err != nil {
		return ApplyResult{}, err
	}
	for _, rec := range batch {
		corpus = append(corpus, TrainingRecordFromSynthesized(rec))
	}

	if len(corpus) < u.cfg.MinRecords {
		RetrainRunsTotal.WithLabelValues(RejectInsufficientData).Inc()
		return ApplyResult{Reason: RejectInsufficientData}, nil
	}

	candidate, err := TrainSnapshot(ctx, corpus, u.cfg)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		RetrainRunsTotal.WithLabelValues(RejectTimeout).Inc()
		return ApplyResult{Reason: RejectTimeout}, nil
	}
	if errors.Is(err, ErrNoTrainingData) {
		RetrainRunsTotal.WithLabelValues(RejectInsufficientData).Inc()
		return ApplyResult{Reason: RejectInsufficientData}, nil
	}
	if err != nil {
		return ApplyResult{}, err
	}

	if len(candidate.Weights) != FeatureCount || candidate.Encoder == nil {
		RetrainRunsTotal.WithLabelValues(RejectEncoderMismatch).Inc()
		return ApplyResult{Reason: RejectEncoderMismatch}, nil
	}

	if active := u.store.Active(); active != nil {
		if candidate.Accuracy < active.Accuracy-u.cfg.AccuracyTolerance {
			RetrainRunsTotal.WithLabelValues(RejectValidationRegression).Inc()
			log.Printf("retrain rejected: candidate accuracy %.3f regresses active %.3f beyond tolerance %.3f",
				candidate.Accuracy, active.Accuracy, u.cfg.AccuracyTolerance)
			return ApplyResult{Accuracy: candidate.Accuracy, Reason: RejectValidationRegression}, nil
		}
	}

	// Persist-then-swap: a publish failure aborts before the pointer
	// changes, leaving the prior snapshot authoritative.
	if err := u.store.Publish(ctx, candidate); err != nil {
		return ApplyResult{}, fmt.Errorf("publish candidate snapshot: %w", err)
	}

	if err := u.markApplied(ctx, batch); err != nil {
		log.Printf("mark batch applied failed (snapshot v%d already live): %v", candidate.Version, err)
	}

	RetrainRunsTotal.WithLabelValues("accepted").Inc()
	log.Printf("retrain accepted: snapshot v%d, accuracy %.3f, corpus %d records (%d new)",
		candidate.Version, candidate.Accuracy, len(corpus), len(batch))
	return ApplyResult{Accepted: true, Version: candidate.Version, Accuracy: candidate.Accuracy}, nil
}

// loadCorpus reads incidents and previously applied synthesized records in
// a stable order so retraining is deterministic for a fixed corpus.
func (u *ModelUpdater) loadCorpus(ctx context.Context) ([]TrainingRecord, error) {
	if u.db == nil {
		return nil, nil
	}

	var incidents []models.Incident
	if err := u.db.WithContext(ctx).Order("id").Find(&incidents).Error; err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}

	var applied []models.SynthesizedRecord
	if err := u.db.WithContext(ctx).Where("applied = ?", true).Order("id").Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("load synthesized records: %w", err)
	}

	corpus := make([]TrainingRecord, 0, len(incidents)+len(applied))
	for _, inc := range incidents {
		corpus = append(corpus, TrainingRecordFromIncident(inc))
	}
	for _, rec := range applied {
		corpus = append(corpus, TrainingRecordFromSynthesized(rec))
	}
	return corpus, nil
}

func (u *ModelUpdater) markApplied(ctx context.Context, batch []models.SynthesizedRecord) error {
	if u.db == nil || len(batch) == 0 {
		return nil
	}
	ids := make([]string, len(batch))
	for i, rec := range batch {
		ids[i] = rec.ID
	}
	return u.db.WithContext(ctx).Model(&models.SynthesizedRecord{}).
		Where("id IN ?", ids).
		Update("applied", true).Error
}

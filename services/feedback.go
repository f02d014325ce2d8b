package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"safety-prediction-api/config"
	"safety-prediction-api/models"

	"gorm.io/gorm"
)

// ErrQueueFull is the backpressure signal: the bounded queue is at
// capacity and the event was not accepted. Nothing is ever dropped
// silently.
var ErrQueueFull = errors.New("feedback queue full")

const (
	feedbackChannel  = "safety:feedback"
	ConfidenceHigh   = "high"
	ConfidenceLow    = "low"
	feedbackSeverity = 4
	feedbackBadValue = "Bad"
)

// IngestOutcome is the terminal result of processing one feedback event.
type IngestOutcome struct {
	Kind    string
	Records []models.SynthesizedRecord
}

// FeedbackIngestor consumes feedback events from a bounded queue with a
// single consumer goroutine. Processing is strictly sequential and
// at-most-once per event id; every event ends in a recorded terminal
// outcome (applied, no_op or ambiguous).
type FeedbackIngestor struct {
	db      *gorm.DB
	store   *ModelStore
	updater *ModelUpdater
	cfg     config.RetrainConfig

	queue chan models.FeedbackEvent

	// consumer-goroutine state, never touched elsewhere
	seen    map[string]bool
	pending []models.SynthesizedRecord
}

func NewFeedbackIngestor(db *gorm.DB, store *ModelStore, updater *ModelUpdater, cfg config.RetrainConfig) *FeedbackIngestor {
	return &FeedbackIngestor{
		db:      db,
		store:   store,
		updater: updater,
		cfg:     cfg,
		queue:   make(chan models.FeedbackEvent, cfg.QueueSize),
		seen:    make(map[string]bool),
	}
}

// Enqueue offers an event to the queue without blocking. A full queue
// returns ErrQueueFull so the caller can surface backpressure.
func (f *FeedbackIngestor) Enqueue(ev models.FeedbackEvent) error {
	select {
	case f.queue <- ev:
		FeedbackQueuedTotal.Inc()
		return nil
	default:
		FeedbackRejectedTotal.Inc()
		return ErrQueueFull
	}
}

// Start launches the consumer goroutine. It exits when ctx is cancelled.
func (f *FeedbackIngestor) Start(ctx context.Context) {
	go func() {
		log.Printf("feedback ingestor running, queue capacity %d", cap(f.queue))
		for {
			select {
			case <-ctx.Done():
				log.Printf("feedback ingestor shutting down")
				return
			case ev := <-f.queue:
				f.process(ctx, ev)
			}
		}
	}()
}

// SubscribeBus feeds events published on the Redis feedback channel into
// the queue, so the out-of-process collector and the HTTP endpoint share
// one ingestion path.
func (f *FeedbackIngestor) SubscribeBus(ctx context.Context, cache *CacheService) {
	if cache == nil || !cache.Available() {
		return
	}
	go func() {
		pubsub := cache.Subscribe(ctx, feedbackChannel)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev models.FeedbackEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("feedback bus: invalid payload: %v", err)
					continue
				}
				if err := f.Enqueue(ev); err != nil {
					log.Printf("feedback bus: %v (event %s)", err, ev.ID)
				}
			}
		}
	}()
}

func (f *FeedbackIngestor) process(ctx context.Context, ev models.FeedbackEvent) {
	if ev.ID == "" {
		log.Printf("feedback event without id dropped from processing")
		return
	}
	if f.seen[ev.ID] {
		return
	}
	if f.alreadyProcessed(ctx, ev.ID) {
		f.seen[ev.ID] = true
		return
	}

	outcome := f.Ingest(ev)

	f.persistOutcome(ctx, ev, outcome)
	f.seen[ev.ID] = true
	FeedbackOutcomesTotal.WithLabelValues(outcome.Kind).Inc()

	if outcome.Kind == models.FeedbackOutcomeApplied {
		f.pending = append(f.pending, outcome.Records...)
	}
	f.maybeRetrain(ctx)
}

// Ingest parses one event into its terminal outcome. Pure with respect to
// the database; persistence happens in process.
func (f *FeedbackIngestor) Ingest(ev models.FeedbackEvent) IngestOutcome {
	if ev.Feedback != feedbackBadValue {
		return IngestOutcome{Kind: models.FeedbackOutcomeNoOp}
	}

	parsed := parseSuggestion(ev.Suggestion, ev.Time, f.stationVocab())

	if !parsed.CrimeFromText && !parsed.StationFromText && !parsed.TimeFromText {
		log.Printf("feedback %s: no recognizable entity in %q, recording no_op", ev.ID, ev.Suggestion)
		return IngestOutcome{Kind: models.FeedbackOutcomeNoOp}
	}

	crimes := parsed.CrimeTypes
	if len(crimes) == 0 && ev.CrimeType != "" {
		crimes = []string{ev.CrimeType}
	}

	station := parsed.Station
	if station == "" {
		station = DefaultStation
	}

	confidence := ConfidenceLow
	if parsed.CrimeFromText && parsed.StationFromText && parsed.TimeFromText {
		confidence = ConfidenceHigh
	}

	if len(crimes) == 0 {
		// Entities were found but no crime type is available from either
		// the text or the event itself: flag for manual review.
		partial := f.buildRecord(ev, DefaultCrimeType, station, parsed.TimeBucket, ConfidenceLow, 0)
		log.Printf("feedback %s: ambiguous, no crime type resolvable from %q", ev.ID, ev.Suggestion)
		return IngestOutcome{Kind: models.FeedbackOutcomeAmbiguous, Records: []models.SynthesizedRecord{partial}}
	}

	// One record per mentioned crime type.
	records := make([]models.SynthesizedRecord, 0, len(crimes))
	for i, crime := range crimes {
		records = append(records, f.buildRecord(ev, crime, station, parsed.TimeBucket, confidence, i))
	}
	return IngestOutcome{Kind: models.FeedbackOutcomeApplied, Records: records}
}

func (f *FeedbackIngestor) buildRecord(ev models.FeedbackEvent, crime, station, bucket, confidence string, idx int) models.SynthesizedRecord {
	return models.SynthesizedRecord{
		ID:            fmt.Sprintf("fb-%s-%d", ev.ID, idx),
		SourceEventID: ev.ID,
		CrimeType:     crime,
		Latitude:      ev.Lat,
		Longitude:     ev.Lon,
		OccurredAt:    time.Now().UTC(),
		TimeOfDay:     ev.Time,
		TimeBucket:    bucket,
		Severity:      feedbackSeverity,
		PoliceStation: station,
		FromFeedback:  true,
		Confidence:    confidence,
	}
}

// stationVocab reads the station table of the active snapshot's encoder so
// the parser and the model always agree on the known names.
func (f *FeedbackIngestor) stationVocab() []string {
	snap := f.store.Active()
	if snap == nil || snap.Encoder == nil {
		return nil
	}
	vocab := make([]string, 0, len(snap.Encoder.Stations))
	for s := range snap.Encoder.Stations {
		vocab = append(vocab, s)
	}
	return vocab
}

func (f *FeedbackIngestor) alreadyProcessed(ctx context.Context, id string) bool {
	if f.db == nil {
		return false
	}
	var row models.FeedbackEvent
	err := f.db.WithContext(ctx).Select("id", "processed").First(&row, "id = ?", id).Error
	if err != nil {
		return false
	}
	return row.Processed
}

func (f *FeedbackIngestor) persistOutcome(ctx context.Context, ev models.FeedbackEvent, outcome IngestOutcome) {
	if f.db == nil {
		return
	}

	for _, rec := range outcome.Records {
		if err := f.db.WithContext(ctx).Create(&rec).Error; err != nil {
			log.Printf("feedback %s: persist synthesized record %s failed: %v", ev.ID, rec.ID, err)
		}
	}

	now := time.Now().UTC()
	ev.Processed = true
	ev.Outcome = outcome.Kind
	ev.ProcessedAt = &now
	if err := f.db.WithContext(ctx).Save(&ev).Error; err != nil {
		log.Printf("feedback %s: mark processed failed: %v", ev.ID, err)
	}
}

// maybeRetrain hands the pending batch to the updater once it is large
// enough. The job runs inline in the consumer goroutine, which serializes
// the trigger: events arriving during a run simply queue in the bounded
// channel and feed the next batch.
func (f *FeedbackIngestor) maybeRetrain(ctx context.Context) {
	if len(f.pending) < f.cfg.TriggerBatch {
		return
	}

	batch := f.pending
	f.pending = nil

	res, err := f.updater.Apply(ctx, batch)
	if errors.Is(err, ErrRetrainRunning) {
		// An externally triggered job holds the lock; re-attempt with the
		// next trigger.
		f.pending = append(batch, f.pending...)
		return
	}
	if err != nil {
		log.Printf("retrain failed: %v", err)
		f.pending = append(batch, f.pending...)
		return
	}
	if !res.Accepted {
		// Rejected batches stay pending so the next trigger re-attempts
		// with the enlarged corpus.
		log.Printf("retrain rejected: %s", res.Reason)
		f.pending = append(batch, f.pending...)
	}
}

package services

import (
	"context"
	"errors"
	"math"
	"time"

	"safety-prediction-api/config"
	"safety-prediction-api/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	LabelSafe  = "safe"
	LabelRisky = "risky"
)

var ErrNoTrainingData = errors.New("no training data")

// ClassifierSnapshot is an immutable, versioned model artifact: a logistic
// regression over the encoded feature space plus the encoder it was fitted
// with. Snapshots are superseded by retraining, never edited.
type ClassifierSnapshot struct {
	Version   int64           `json:"version"`
	Encoder   *FeatureEncoder `json:"encoder"`
	Weights   []float64       `json:"weights"`
	Bias      float64         `json:"bias"`
	Accuracy  float64         `json:"accuracy"`
	TrainedAt time.Time       `json:"trained_at"`
}

type Prediction struct {
	Label      string
	Confidence float64
	RiskScore  float64
	SafeScore  float64
}

// Predict scores an encoded vector. Deterministic for a fixed snapshot:
// same vector, same result. RiskScore and SafeScore always sum to 1.
func (s *ClassifierSnapshot) Predict(vec []float64) Prediction {
	z := floats.Dot(s.Weights, vec) + s.Bias
	risk := sigmoid(z)
	safe := 1 - risk

	p := Prediction{RiskScore: risk, SafeScore: safe}
	if risk >= 0.5 {
		p.Label = LabelRisky
		p.Confidence = risk
	} else {
		p.Label = LabelSafe
		p.Confidence = safe
	}
	return p
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// TrainingRecord is one labeled row of the classifier corpus.
type TrainingRecord struct {
	Input RecordInput
	Label int
}

// TrainSnapshot fits a fresh encoder and logistic model on the corpus and
// evaluates it on a deterministic held-out split (every fifth record).
// Training is zero-initialized batch gradient descent with a fixed epoch
// count and rate, so identical corpora in identical order produce
// identical snapshots. The context is checked every epoch; cancellation
// aborts with the context error.
func TrainSnapshot(ctx context.Context, corpus []TrainingRecord, cfg config.RetrainConfig) (*ClassifierSnapshot, error) {
	if len(corpus) == 0 {
		return nil, ErrNoTrainingData
	}

	stationVocab := collectStations(corpus)
	enc := NewFeatureEncoder(DefaultCrimeTypes, stationVocab)

	raw := make([][]float64, len(corpus))
	for i, rec := range corpus {
		raw[i] = enc.rawVector(rec.Input)
	}
	enc.FitScaler(raw)
	for _, row := range raw {
		enc.scale(row)
	}

	var trainX, valX [][]float64
	var trainY, valY []float64
	for i, rec := range corpus {
		if (i+1)%5 == 0 && len(corpus) >= 5 {
			valX = append(valX, raw[i])
			valY = append(valY, float64(rec.Label))
		} else {
			trainX = append(trainX, raw[i])
			trainY = append(trainY, float64(rec.Label))
		}
	}
	if len(valX) == 0 {
		valX, valY = trainX, trainY
	}

	weights, bias, err := trainLogistic(ctx, trainX, trainY, cfg.Epochs, cfg.LearnRate)
	if err != nil {
		return nil, err
	}

	snap := &ClassifierSnapshot{
		Encoder:   enc,
		Weights:   weights,
		Bias:      bias,
		TrainedAt: time.Now().UTC(),
	}
	snap.Accuracy = snap.evaluate(valX, valY)
	return snap, nil
}

func collectStations(corpus []TrainingRecord) []string {
	seen := map[string]bool{DefaultStation: true}
	for _, rec := range corpus {
		if rec.Input.Station != "" {
			seen[rec.Input.Station] = true
		}
	}
	stations := make([]string, 0, len(seen))
	for s := range seen {
		stations = append(stations, s)
	}
	return stations
}

func trainLogistic(ctx context.Context, X [][]float64, y []float64, epochs int, rate float64) ([]float64, float64, error) {
	n := len(X)
	if n == 0 {
		return nil, 0, ErrNoTrainingData
	}

	xm := mat.NewDense(n, FeatureCount, nil)
	for i, row := range X {
		xm.SetRow(i, row)
	}
	yv := mat.NewVecDense(n, y)

	w := mat.NewVecDense(FeatureCount, nil)
	var bias float64

	pred := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(FeatureCount, nil)

	for epoch := 0; epoch < epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		// pred = sigmoid(Xw + b)
		pred.MulVec(xm, w)
		for i := 0; i < n; i++ {
			pred.SetVec(i, sigmoid(pred.AtVec(i)+bias))
		}

		// residual = pred - y
		pred.SubVec(pred, yv)

		// grad = X^T residual / n
		grad.MulVec(xm.T(), pred)
		grad.ScaleVec(1/float64(n), grad)

		var biasGrad float64
		for i := 0; i < n; i++ {
			biasGrad += pred.AtVec(i)
		}
		biasGrad /= float64(n)

		w.AddScaledVec(w, -rate, grad)
		bias -= rate * biasGrad
	}

	out := make([]float64, FeatureCount)
	copy(out, w.RawVector().Data)
	return out, bias, nil
}

func (s *ClassifierSnapshot) evaluate(X [][]float64, y []float64) float64 {
	if len(X) == 0 {
		return 0
	}
	correct := 0
	for i, row := range X {
		p := s.Predict(row)
		predicted := 0.0
		if p.Label == LabelRisky {
			predicted = 1
		}
		if predicted == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

// TrainingRecordFromIncident converts a historical incident row. A
// malformed time-of-day falls back to noon rather than dropping the row.
func TrainingRecordFromIncident(inc models.Incident) TrainingRecord {
	hour, minute, err := ParseClock(inc.TimeOfDay)
	if err != nil {
		hour, minute = 12, 0
	}
	in := RecordInput{
		Lat:       inc.Latitude,
		Lon:       inc.Longitude,
		Severity:  inc.Severity,
		CrimeType: inc.CrimeType,
		Station:   inc.PoliceStation,
		Date:      inc.OccurredAt,
		Hour:      hour,
		Minute:    minute,
	}
	return TrainingRecord{Input: in, Label: RiskLabel(in.Severity, in.CrimeType)}
}

// TrainingRecordFromSynthesized converts a feedback-derived record. The
// label is always risky: synthesized records exist to correct a miss.
func TrainingRecordFromSynthesized(rec models.SynthesizedRecord) TrainingRecord {
	hour, minute, err := ParseClock(rec.TimeOfDay)
	if err != nil {
		hour, minute = 12, 0
	}
	in := RecordInput{
		Lat:       rec.Latitude,
		Lon:       rec.Longitude,
		Severity:  rec.Severity,
		CrimeType: rec.CrimeType,
		Station:   rec.PoliceStation,
		Date:      rec.OccurredAt,
		Hour:      hour,
		Minute:    minute,
	}
	return TrainingRecord{Input: in, Label: 1}
}

package services

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Time-of-day buckets shared by the feature encoder and the feedback
// parser. The boundaries are part of the trained model contract and must
// not drift between the two.
const (
	BucketNight     = "night"
	BucketMorning   = "morning"
	BucketAfternoon = "afternoon"
	BucketEvening   = "evening"
)

const (
	nightStartHour = 22
	nightEndHour   = 6
)

// Defaults substituted when an assessment request omits optional fields.
const (
	DefaultSeverity  = 3
	DefaultCrimeType = "General Safety"
	DefaultStation   = "Unknown PS"
)

// DefaultCrimeTypes is the known crime-type vocabulary. The first seven
// entries are treated as inherently high-risk when labeling the training
// corpus.
var DefaultCrimeTypes = []string{
	"Sexual Harassment",
	"Kidnapping",
	"Murder",
	"Assault",
	"Chain Snatching",
	"Robbery",
	"Domestic Violence",
	"Theft",
	"Burglary",
	"Vandalism",
	"Drug Abuse",
	"Illegal Gambling",
}

var highRiskCrimeTypes = map[string]bool{
	"Sexual Harassment": true,
	"Kidnapping":        true,
	"Murder":            true,
	"Assault":           true,
	"Chain Snatching":   true,
	"Robbery":           true,
	"Domestic Violence": true,
}

// ParseClock parses a strict "HH:MM" 24h time string.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// IsNightHour is the fixed night boundary baked into the feature buckets.
// The operational night window lives in config.RiskConfig; this one is part
// of the trained model contract and does not move with it.
func IsNightHour(hour int) bool {
	return hour >= nightStartHour || hour <= nightEndHour
}

// TimeBucketForHour maps an hour to its time-of-day bucket. Every hour
// belongs to exactly one bucket.
func TimeBucketForHour(hour int) string {
	switch {
	case IsNightHour(hour):
		return BucketNight
	case hour <= 11:
		return BucketMorning
	case hour <= 17:
		return BucketAfternoon
	default:
		return BucketEvening
	}
}

// FeatureCount is the fixed width of an encoded feature vector.
const FeatureCount = 15

// indices of features that get standard scaling; the binary flags and
// category codes are left as-is.
var scaledFeatureIndices = []int{0, 1, 2, 3, 4, 9, 10, 11}

// FeatureEncoder maps a raw incident-shaped input to a fixed-width numeric
// vector. The category tables and scaler statistics are fitted at training
// time and serialized with the snapshot so that a model is never paired
// with a foreign encoding.
type FeatureEncoder struct {
	CrimeTypes map[string]int `json:"crime_types"`
	Stations   map[string]int `json:"stations"`
	Means      []float64      `json:"means"`
	Stds       []float64      `json:"stds"`
}

// NewFeatureEncoder builds category tables from the given vocabularies.
// Codes are assigned in sorted order so two encoders fitted on the same
// vocabulary are identical regardless of input order. Unknown categories
// encode to 0.
func NewFeatureEncoder(crimeVocab, stationVocab []string) *FeatureEncoder {
	enc := &FeatureEncoder{
		CrimeTypes: make(map[string]int, len(crimeVocab)),
		Stations:   make(map[string]int, len(stationVocab)),
	}

	crimes := append([]string(nil), crimeVocab...)
	sort.Strings(crimes)
	for i, c := range crimes {
		enc.CrimeTypes[c] = i
	}

	stations := append([]string(nil), stationVocab...)
	sort.Strings(stations)
	for i, s := range stations {
		enc.Stations[s] = i
	}

	return enc
}

// RecordInput is the raw shape the encoder consumes: either a historical
// incident, a synthesized feedback record, or an assessment request with
// defaults filled in.
type RecordInput struct {
	Lat       float64
	Lon       float64
	Severity  int
	CrimeType string
	Station   string
	Date      time.Time
	Hour      int
	Minute    int
}

// rawVector encodes without scaling. Used during fitting.
func (e *FeatureEncoder) rawVector(in RecordInput) []float64 {
	boolF := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}

	bucket := TimeBucketForHour(in.Hour)
	dow := int(in.Date.Weekday())

	v := make([]float64, FeatureCount)
	v[0] = in.Lat
	v[1] = in.Lon
	v[2] = float64(in.Severity)
	v[3] = float64(in.Hour)
	v[4] = float64(in.Minute)
	v[5] = boolF(bucket == BucketNight)
	v[6] = boolF(bucket == BucketEvening)
	v[7] = boolF(bucket == BucketMorning)
	v[8] = boolF(bucket == BucketAfternoon)
	v[9] = float64(dow)
	v[10] = float64(int(in.Date.Month()))
	v[11] = float64(in.Date.Day())
	v[12] = boolF(dow == 0 || dow == 6)
	v[13] = float64(e.CrimeTypes[in.CrimeType])
	v[14] = float64(e.Stations[in.Station])
	return v
}

// Vector encodes and scales an input using the fitted statistics.
func (e *FeatureEncoder) Vector(in RecordInput) []float64 {
	v := e.rawVector(in)
	e.scale(v)
	return v
}

func (e *FeatureEncoder) scale(v []float64) {
	if len(e.Means) != FeatureCount || len(e.Stds) != FeatureCount {
		return
	}
	for _, i := range scaledFeatureIndices {
		v[i] = (v[i] - e.Means[i]) / e.Stds[i]
	}
}

// FitScaler computes per-feature mean and standard deviation over the raw
// training vectors. Zero-variance features keep a std of 1 so scaling is a
// no-op for them.
func (e *FeatureEncoder) FitScaler(raw [][]float64) {
	e.Means = make([]float64, FeatureCount)
	e.Stds = make([]float64, FeatureCount)
	for i := range e.Stds {
		e.Stds[i] = 1
	}
	if len(raw) == 0 {
		return
	}

	n := float64(len(raw))
	for _, row := range raw {
		for i, x := range row {
			e.Means[i] += x
		}
	}
	for i := range e.Means {
		e.Means[i] /= n
	}

	for _, i := range scaledFeatureIndices {
		var ss float64
		for _, row := range raw {
			d := row[i] - e.Means[i]
			ss += d * d
		}
		std := math.Sqrt(ss / n)
		if std > 0 {
			e.Stds[i] = std
		}
	}
}

// RiskLabel labels a record risky (1) when severity is 4 or above or the
// crime type is in the high-risk set, safe (0) otherwise.
func RiskLabel(severity int, crimeType string) int {
	if severity >= 4 || highRiskCrimeTypes[crimeType] {
		return 1
	}
	return 0
}

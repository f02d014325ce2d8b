package services

import (
	"reflect"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{"midnight", "00:00", 0, 0, false},
		{"morning", "09:15", 9, 15, false},
		{"late night", "23:59", 23, 59, false},
		{"missing minutes", "22", 0, 0, true},
		{"out of range hour", "25:00", 0, 0, true},
		{"empty", "", 0, 0, true},
		{"am/pm not accepted", "9:30 pm", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseClock(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q) expected error, got %d:%d", tt.input, hour, minute)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) failed: %v", tt.input, err)
			}
			if hour != tt.wantHour || minute != tt.wantMinute {
				t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.input, hour, minute, tt.wantHour, tt.wantMinute)
			}
		})
	}
}

func TestTimeBucketForHour(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, BucketNight},
		{6, BucketNight},
		{7, BucketMorning},
		{11, BucketMorning},
		{12, BucketAfternoon},
		{17, BucketAfternoon},
		{18, BucketEvening},
		{21, BucketEvening},
		{22, BucketNight},
		{23, BucketNight},
	}

	for _, tt := range tests {
		if got := TimeBucketForHour(tt.hour); got != tt.want {
			t.Errorf("TimeBucketForHour(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestIsNightHour(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		want := hour >= 22 || hour <= 6
		if got := IsNightHour(hour); got != want {
			t.Errorf("IsNightHour(%d) = %v, want %v", hour, got, want)
		}
	}
}

func TestEncoderVocabularyOrderIndependent(t *testing.T) {
	a := NewFeatureEncoder(
		[]string{"Theft", "Assault", "Robbery"},
		[]string{"North PS", "South PS"},
	)
	b := NewFeatureEncoder(
		[]string{"Robbery", "Theft", "Assault"},
		[]string{"South PS", "North PS"},
	)

	if !reflect.DeepEqual(a.CrimeTypes, b.CrimeTypes) {
		t.Errorf("crime tables differ: %v vs %v", a.CrimeTypes, b.CrimeTypes)
	}
	if !reflect.DeepEqual(a.Stations, b.Stations) {
		t.Errorf("station tables differ: %v vs %v", a.Stations, b.Stations)
	}
}

func TestEncoderUnknownCategoryIsZero(t *testing.T) {
	enc := NewFeatureEncoder([]string{"Assault", "Theft"}, []string{"North PS"})
	enc.FitScaler(nil)

	in := RecordInput{
		Lat: 11.0, Lon: 76.9, Severity: 3,
		CrimeType: "Never Seen", Station: "Nowhere PS",
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Hour: 14, Minute: 30,
	}
	v := enc.Vector(in)

	if len(v) != FeatureCount {
		t.Fatalf("vector length = %d, want %d", len(v), FeatureCount)
	}
	if v[13] != 0 {
		t.Errorf("unknown crime type encoded as %v, want 0", v[13])
	}
	if v[14] != 0 {
		t.Errorf("unknown station encoded as %v, want 0", v[14])
	}
}

func TestVectorBucketFlags(t *testing.T) {
	enc := NewFeatureEncoder(DefaultCrimeTypes, []string{DefaultStation})
	enc.FitScaler(nil)

	tests := []struct {
		hour    string
		h       int
		nightF  float64
		eveF    float64
		mornF   float64
		afterF  float64
		weekend bool
	}{
		{"night", 23, 1, 0, 0, 0, false},
		{"morning", 9, 0, 0, 1, 0, false},
		{"afternoon", 15, 0, 0, 0, 1, false},
		{"evening", 19, 0, 1, 0, 0, false},
	}

	// A Tuesday.
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.hour, func(t *testing.T) {
			v := enc.Vector(RecordInput{
				CrimeType: "Theft", Station: DefaultStation,
				Date: date, Hour: tt.h,
			})
			if v[5] != tt.nightF || v[6] != tt.eveF || v[7] != tt.mornF || v[8] != tt.afterF {
				t.Errorf("bucket flags for hour %d = [%v %v %v %v], want [%v %v %v %v]",
					tt.h, v[5], v[6], v[7], v[8], tt.nightF, tt.eveF, tt.mornF, tt.afterF)
			}
			if v[12] != 0 {
				t.Errorf("weekend flag = %v for a Tuesday, want 0", v[12])
			}
		})
	}
}

func TestFitScalerZeroVariance(t *testing.T) {
	enc := NewFeatureEncoder(DefaultCrimeTypes, []string{DefaultStation})

	rows := [][]float64{
		make([]float64, FeatureCount),
		make([]float64, FeatureCount),
	}
	for _, row := range rows {
		row[0] = 11.0 // constant latitude
	}
	enc.FitScaler(rows)

	if enc.Stds[0] != 1 {
		t.Errorf("zero-variance std = %v, want 1", enc.Stds[0])
	}
	if enc.Means[0] != 11.0 {
		t.Errorf("mean = %v, want 11.0", enc.Means[0])
	}
}

func TestRiskLabel(t *testing.T) {
	tests := []struct {
		name      string
		severity  int
		crimeType string
		want      int
	}{
		{"high severity", 4, "Theft", 1},
		{"max severity", 5, "Vandalism", 1},
		{"high-risk crime low severity", 2, "Sexual Harassment", 1},
		{"kidnapping", 1, "Kidnapping", 1},
		{"low severity ordinary crime", 3, "Theft", 0},
		{"low everything", 1, "Vandalism", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskLabel(tt.severity, tt.crimeType); got != tt.want {
				t.Errorf("RiskLabel(%d, %q) = %d, want %d", tt.severity, tt.crimeType, got, tt.want)
			}
		})
	}
}

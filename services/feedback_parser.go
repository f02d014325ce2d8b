package services

import (
	"regexp"
	"strings"
)

// parsedSuggestion is the structured result of scanning a free-text
// correction. The FromText flags drive the confidence tier: a record is
// high-confidence only when all three entity kinds were matched in the
// text itself rather than pulled from the event's own fields.
type parsedSuggestion struct {
	CrimeTypes      []string
	CrimeFromText   bool
	Station         string
	StationFromText bool
	TimeBucket      string
	TimeFromText    bool
}

var (
	clock24Re  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	amPmRe     = regexp.MustCompile(`\b(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b`)
	bareHourRe = regexp.MustCompile(`\bat\s+(\d{1,2})\b`)
	wordRe     = regexp.MustCompile(`[A-Za-z]+`)
)

// parseSuggestion runs the three entity extractors over the suggestion
// text. eventTime is the event's own reported "HH:MM", used as the
// fallback and as the tie-break anchor for partial time expressions.
func parseSuggestion(text, eventTime string, stationVocab []string) parsedSuggestion {
	lower := strings.ToLower(text)

	p := parsedSuggestion{}
	p.CrimeTypes, p.CrimeFromText = extractCrimeTypes(lower)
	p.Station, p.StationFromText = extractStation(text, lower, stationVocab)
	p.TimeBucket, p.TimeFromText = extractTimeBucket(lower, eventTime)
	return p
}

// extractCrimeTypes scans the known vocabulary. Multiple mentions are all
// returned, in vocabulary order for determinism.
func extractCrimeTypes(lower string) ([]string, bool) {
	var found []string
	for _, crime := range DefaultCrimeTypes {
		if strings.Contains(lower, strings.ToLower(crime)) {
			found = append(found, crime)
		}
	}
	return found, len(found) > 0
}

// extractStation first scans the known station vocabulary, then falls back
// to the "<Name> PS" / "<Name> police station" pattern. An unmatched text
// yields ok=false; the caller substitutes the event's own field.
func extractStation(text, lower string, vocab []string) (string, bool) {
	for _, station := range vocab {
		if station == "" || station == DefaultStation {
			continue
		}
		if strings.Contains(lower, strings.ToLower(station)) {
			return station, true
		}
		// Vocabulary entries often carry a " PS" suffix the text omits.
		trimmed := strings.TrimSuffix(station, " PS")
		if trimmed != station && strings.Contains(lower, strings.ToLower(trimmed)) {
			return station, true
		}
	}

	words := wordRe.FindAllString(text, -1)
	for i, w := range words {
		lw := strings.ToLower(w)
		if (lw == "ps" || lw == "police") && i > 0 {
			prev := words[i-1]
			if strings.ToLower(prev) == "at" || strings.ToLower(prev) == "near" {
				continue
			}
			return prev, true
		}
	}
	return "", false
}

// extractTimeBucket recognizes named periods first, then explicit clock
// expressions. A bare hour without am/pm is ambiguous between two clock
// readings; the reading closer to the event's own reported time wins, and
// an exact tie defaults to the bucket containing the event's time.
func extractTimeBucket(lower, eventTime string) (string, bool) {
	type named struct {
		word   string
		bucket string
	}
	names := []named{
		{"night", BucketNight},
		{"afternoon", BucketAfternoon},
		{"noon", BucketAfternoon},
		{"morning", BucketMorning},
		{"evening", BucketEvening},
	}
	bestIdx := -1
	bestBucket := ""
	for _, n := range names {
		if idx := strings.Index(lower, n.word); idx >= 0 && (bestIdx == -1 || idx < bestIdx) {
			bestIdx = idx
			bestBucket = n.bucket
		}
	}
	if bestIdx >= 0 {
		return bestBucket, true
	}

	// am/pm readings take precedence: "9:30 pm" must not be read as the
	// bare 24h clock 09:30.
	if m := amPmRe.FindStringSubmatch(lower); m != nil {
		hour := atoiSafe(m[1]) % 12
		if m[3] == "pm" {
			hour += 12
		}
		return TimeBucketForHour(hour), true
	}

	if m := clock24Re.FindStringSubmatch(lower); m != nil {
		hour, _, err := ParseClock(padClock(m[1], m[2]))
		if err == nil {
			return TimeBucketForHour(hour), true
		}
	}

	if m := bareHourRe.FindStringSubmatch(lower); m != nil {
		hour := atoiSafe(m[1])
		if hour >= 13 && hour <= 23 {
			return TimeBucketForHour(hour), true
		}
		if hour <= 12 {
			return nearestReading(hour, eventTime), true
		}
	}

	return eventBucket(eventTime), false
}

// nearestReading resolves an ambiguous 12h hour against the event's own
// clock time.
func nearestReading(hour int, eventTime string) string {
	evHour, evMinute, err := ParseClock(eventTime)
	if err != nil {
		evHour, evMinute = 12, 0
	}
	evMinutes := evHour*60 + evMinute

	a := hour % 24
	b := (hour + 12) % 24
	da := clockDistance(a*60, evMinutes)
	db := clockDistance(b*60, evMinutes)

	switch {
	case da < db:
		return TimeBucketForHour(a)
	case db < da:
		return TimeBucketForHour(b)
	default:
		return TimeBucketForHour(evHour)
	}
}

// clockDistance is the circular distance in minutes between two points on
// a 24h clock.
func clockDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 12*60 {
		d = 24*60 - d
	}
	return d
}

func eventBucket(eventTime string) string {
	hour, _, err := ParseClock(eventTime)
	if err != nil {
		hour = 12
	}
	return TimeBucketForHour(hour)
}

func padClock(h, m string) string {
	if len(h) == 1 {
		h = "0" + h
	}
	return h + ":" + m
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

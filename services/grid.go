package services

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"safety-prediction-api/config"
	"safety-prediction-api/models"
)

// 1 degree of latitude is roughly 111 km; good enough for radius searches
// at city scale.
const kmPerDegree = 111.0

// CellKey identifies a grid cell by truncated coordinates.
type CellKey struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (k CellKey) String() string { return fmt.Sprintf("%d:%d", k.Row, k.Col) }

// GridCell is the aggregate for one cell: incident count, a severity
// weighted score (night-hour incidents weigh more), the dominant crime
// types and the derived risk label. Cells are built once per rebuild and
// never mutated afterwards.
type GridCell struct {
	Key                CellKey  `json:"key"`
	MinLat             float64  `json:"min_lat"`
	MaxLat             float64  `json:"max_lat"`
	MinLon             float64  `json:"min_lon"`
	MaxLon             float64  `json:"max_lon"`
	CenterLat          float64  `json:"center_lat"`
	CenterLon          float64  `json:"center_lon"`
	Count              int      `json:"count"`
	SeverityScore      float64  `json:"severity_score"`
	DominantCrimeTypes []string `json:"dominant_crime_types"`
	RiskLabel          string   `json:"risk_label"`
}

// GridSnapshot is an immutable view of the whole grid. In-flight queries
// keep reading the snapshot they captured even while a rebuild publishes a
// new one.
type GridSnapshot struct {
	cells    map[CellKey]*GridCell
	cellSize float64
	builtAt  time.Time
	counts   map[string]int
}

// GridIndex holds the active grid snapshot behind an atomic pointer.
// Rebuild is the single writer; Classify and Nearby are lock-free readers.
type GridIndex struct {
	cfg    config.GridConfig
	risk   config.RiskConfig
	active atomic.Pointer[GridSnapshot]
}

func NewGridIndex(cfg config.GridConfig, risk config.RiskConfig) *GridIndex {
	g := &GridIndex{cfg: cfg, risk: risk}
	g.active.Store(&GridSnapshot{
		cells:    map[CellKey]*GridCell{},
		cellSize: cfg.CellSizeDeg,
		builtAt:  time.Now().UTC(),
		counts:   map[string]int{},
	})
	return g
}

func (g *GridIndex) Snapshot() *GridSnapshot {
	return g.active.Load()
}

func (g *GridIndex) keyFor(lat, lon float64) CellKey {
	return CellKey{
		Row: int(math.Floor(lat / g.cfg.CellSizeDeg)),
		Col: int(math.Floor(lon / g.cfg.CellSizeDeg)),
	}
}

// Rebuild aggregates the incident set into a fresh snapshot and swaps it
// in. The result is a pure function of the incident set: labels do not
// depend on insertion order.
func (g *GridIndex) Rebuild(incidents []models.Incident) *GridSnapshot {
	cells := make(map[CellKey]*GridCell)
	crimeCounts := make(map[CellKey]map[string]int)

	for _, inc := range incidents {
		key := g.keyFor(inc.Latitude, inc.Longitude)
		cell, ok := cells[key]
		if !ok {
			minLat := float64(key.Row) * g.cfg.CellSizeDeg
			minLon := float64(key.Col) * g.cfg.CellSizeDeg
			cell = &GridCell{
				Key:       key,
				MinLat:    minLat,
				MaxLat:    minLat + g.cfg.CellSizeDeg,
				MinLon:    minLon,
				MaxLon:    minLon + g.cfg.CellSizeDeg,
				CenterLat: minLat + g.cfg.CellSizeDeg/2,
				CenterLon: minLon + g.cfg.CellSizeDeg/2,
			}
			cells[key] = cell
			crimeCounts[key] = make(map[string]int)
		}

		weight := 1.0
		if hour, _, err := ParseClock(inc.TimeOfDay); err == nil && g.risk.IsNight(hour) {
			weight = g.cfg.NightWeight
		}

		cell.Count++
		cell.SeverityScore += float64(inc.Severity) * weight
		crimeCounts[key][inc.CrimeType]++
	}

	counts := map[string]int{}
	for key, cell := range cells {
		cell.DominantCrimeTypes = dominantTypes(crimeCounts[key], 3)
		cell.RiskLabel = g.labelFor(cell.Count, cell.SeverityScore)
		counts[cell.RiskLabel]++
	}

	snap := &GridSnapshot{
		cells:    cells,
		cellSize: g.cfg.CellSizeDeg,
		builtAt:  time.Now().UTC(),
		counts:   counts,
	}
	g.active.Store(snap)
	return snap
}

// labelFor classifies a cell aggregate. Crossing the high threshold on
// either axis is enough for high; same rule for medium.
func (g *GridIndex) labelFor(count int, score float64) string {
	switch {
	case count >= g.cfg.HighCount || score >= g.cfg.HighScore:
		return RiskHigh
	case count >= g.cfg.MediumCount || score >= g.cfg.MediumScore:
		return RiskMedium
	default:
		return RiskLow
	}
}

func dominantTypes(counts map[string]int, top int) []string {
	type tc struct {
		name  string
		count int
	}
	all := make([]tc, 0, len(counts))
	for name, n := range counts {
		all = append(all, tc{name, n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].name < all[j].name
	})
	if len(all) > top {
		all = all[:top]
	}
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.name
	}
	return names
}

// CellStats is the classification result for one coordinate.
type CellStats struct {
	InGrid             bool     `json:"in_grid"`
	RiskLabel          string   `json:"risk_label"`
	Count              int      `json:"count"`
	SeverityScore      float64  `json:"severity_score"`
	DominantCrimeTypes []string `json:"dominant_crime_types,omitempty"`
	CenterLat          float64  `json:"center_lat,omitempty"`
	CenterLon          float64  `json:"center_lon,omitempty"`
}

// Classify looks up the cell for a coordinate by truncation. Coordinates
// outside the aggregated region classify low with zero stats.
func (s *GridSnapshot) Classify(lat, lon float64) CellStats {
	key := CellKey{
		Row: int(math.Floor(lat / s.cellSize)),
		Col: int(math.Floor(lon / s.cellSize)),
	}
	cell, ok := s.cells[key]
	if !ok {
		return CellStats{InGrid: false, RiskLabel: RiskLow}
	}
	return CellStats{
		InGrid:             true,
		RiskLabel:          cell.RiskLabel,
		Count:              cell.Count,
		SeverityScore:      cell.SeverityScore,
		DominantCrimeTypes: cell.DominantCrimeTypes,
		CenterLat:          cell.CenterLat,
		CenterLon:          cell.CenterLon,
	}
}

type NearbyCell struct {
	Cell       *GridCell `json:"cell"`
	DistanceKm float64   `json:"distance_km"`
	RiskLabel  string    `json:"risk_label"`
}

// Nearby returns cells whose center lies within radiusKm, ordered by
// ascending distance with cell key as the deterministic tie-break.
func (s *GridSnapshot) Nearby(lat, lon, radiusKm float64) []NearbyCell {
	radiusDeg := radiusKm / kmPerDegree

	var out []NearbyCell
	for _, cell := range s.cells {
		d := math.Hypot(cell.CenterLat-lat, cell.CenterLon-lon)
		if d <= radiusDeg {
			out = append(out, NearbyCell{
				Cell:       cell,
				DistanceKm: d * kmPerDegree,
				RiskLabel:  cell.RiskLabel,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		a, b := out[i].Cell.Key, out[j].Cell.Key
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return out
}

type GridSummary struct {
	TotalCells  int       `json:"total_cells"`
	HighCells   int       `json:"high_cells"`
	MediumCells int       `json:"medium_cells"`
	LowCells    int       `json:"low_cells"`
	CellSizeKm  float64   `json:"cell_size_km"`
	BuiltAt     time.Time `json:"built_at"`
}

func (s *GridSnapshot) Summary() GridSummary {
	return GridSummary{
		TotalCells:  len(s.cells),
		HighCells:   s.counts[RiskHigh],
		MediumCells: s.counts[RiskMedium],
		LowCells:    s.counts[RiskLow],
		CellSizeKm:  s.cellSize * kmPerDegree,
		BuiltAt:     s.builtAt,
	}
}

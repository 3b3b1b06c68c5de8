// Package track computes statistics over recorded feature collections.
package track

import (
	"math"
	"time"

	"github.com/golang/geo/s2"

	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

// EarthRadiusMeters is the mean Earth radius
const EarthRadiusMeters = 6371000.0

// Bounds is the bounding box of a track
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Summary describes a recorded track
type Summary struct {
	Features       int                    `json:"features"`
	Start          time.Time              `json:"start"`
	End            time.Time              `json:"end"`
	Duration       time.Duration          `json:"duration"`
	DistanceMeters float64                `json:"distance_meters"`
	Providers      map[types.Provider]int `json:"providers"`
	Bounds         *Bounds                `json:"bounds,omitempty"`
}

// AverageSpeed returns the mean speed in meters per second
func (s Summary) AverageSpeed() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.DistanceMeters / s.Duration.Seconds()
}

// Distance returns the great-circle distance between two points in meters
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Summarize walks the features in document order. Features without a
// two-dimensional point are counted but ignored for distance and bounds.
func Summarize(fc *types.FeatureCollection) Summary {
	sum := Summary{Providers: make(map[types.Provider]int)}
	if fc == nil {
		return sum
	}

	var (
		prev    *types.Feature
		minTS   int64 = math.MaxInt64
		maxTS   int64 = math.MinInt64
		hasTime bool
	)

	for i := range fc.Features {
		f := &fc.Features[i]
		sum.Features++
		sum.Providers[f.Properties.Provider]++

		ts := f.Properties.Timestamp
		minTS = min(minTS, ts)
		maxTS = max(maxTS, ts)
		hasTime = true

		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		sum.Bounds = extend(sum.Bounds, f.Latitude(), f.Longitude())
		if prev != nil {
			sum.DistanceMeters += Distance(prev.Latitude(), prev.Longitude(), f.Latitude(), f.Longitude())
		}
		prev = f
	}

	if hasTime {
		sum.Start = time.Unix(minTS, 0).UTC()
		sum.End = time.Unix(maxTS, 0).UTC()
		sum.Duration = sum.End.Sub(sum.Start)
	}

	return sum
}

func extend(b *Bounds, lat, lon float64) *Bounds {
	if b == nil {
		return &Bounds{MinLat: lat, MinLon: lon, MaxLat: lat, MaxLon: lon}
	}
	b.MinLat = math.Min(b.MinLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MaxLon = math.Max(b.MaxLon, lon)
	return b
}

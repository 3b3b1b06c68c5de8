package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Provider selects the location source used by the location command
type Provider string

const (
	ProviderGPS     Provider = "gps"
	ProviderNetwork Provider = "network"
	ProviderPassive Provider = "passive"
)

// ErrInvalidProvider is returned when a provider selector is not recognised
var ErrInvalidProvider = errors.New("invalid provider")

// Providers lists the supported providers in selector order
func Providers() []Provider {
	return []Provider{ProviderGPS, ProviderNetwork, ProviderPassive}
}

// ParseProvider accepts a full provider name or its one-letter alias (g, n, p)
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "g", "gps":
		return ProviderGPS, nil
	case "n", "network":
		return ProviderNetwork, nil
	case "p", "passive":
		return ProviderPassive, nil
	}
	return "", fmt.Errorf("%w: %q (want one of %v)", ErrInvalidProvider, s, Providers())
}

// Valid reports whether p is one of the supported providers
func (p Provider) Valid() bool {
	return slices.Contains(Providers(), p)
}

func (p Provider) String() string {
	return string(p)
}

// Sample is a single location reading
type Sample struct {
	Longitude float64
	Latitude  float64
	Timestamp int64
	Provider  Provider
	// Info holds the full provider payload, passed through unmodified. Numbers
	// decoded by the location package are json.Number.
	Info map[string]any
}

// GeoJSON object types
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
	TypePoint             = "Point"
)

// Geometry is a GeoJSON point geometry. Coordinates are [lon, lat].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Properties carries the recorded metadata of a feature
type Properties struct {
	Timestamp      int64          `json:"timestamp"`
	Provider       Provider       `json:"provider"`
	AdditionalInfo map[string]any `json:"additional_info"`
}

// Feature is one recorded location sample
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// NewFeature wraps a sample into a point feature
func NewFeature(s Sample) Feature {
	return Feature{
		Type: TypeFeature,
		Geometry: Geometry{
			Type:        TypePoint,
			Coordinates: []float64{s.Longitude, s.Latitude},
		},
		Properties: Properties{
			Timestamp:      s.Timestamp,
			Provider:       s.Provider,
			AdditionalInfo: s.Info,
		},
	}
}

// Longitude returns the first coordinate, or 0 for a malformed geometry
func (f Feature) Longitude() float64 {
	if len(f.Geometry.Coordinates) < 2 {
		return 0
	}
	return f.Geometry.Coordinates[0]
}

// Latitude returns the second coordinate, or 0 for a malformed geometry
func (f Feature) Latitude() float64 {
	if len(f.Geometry.Coordinates) < 2 {
		return 0
	}
	return f.Geometry.Coordinates[1]
}

// FeatureCollection is the document persisted for a run
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty collection
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     TypeFeatureCollection,
		Features: []Feature{},
	}
}

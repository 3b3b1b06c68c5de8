package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

func feature(lon, lat float64, ts int64, provider types.Provider) types.Feature {
	return types.NewFeature(types.Sample{
		Longitude: lon,
		Latitude:  lat,
		Timestamp: ts,
		Provider:  provider,
		Info:      map[string]any{"longitude": lon, "latitude": lat},
	})
}

func TestDistance(t *testing.T) {
	t.Parallel()

	// one degree along a meridian
	assert.InDelta(t, 111194.93, Distance(0, 0, 1, 0), 0.5)
	assert.InDelta(t, 0, Distance(37.8, -122.4, 37.8, -122.4), 1e-9)
	assert.InDelta(t, Distance(10, 20, 11, 21), Distance(11, 21, 10, 20), 1e-6)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	fc := types.NewFeatureCollection()
	fc.Features = append(fc.Features,
		feature(0, 0, 1700000000, types.ProviderGPS),
		feature(0, 1, 1700000060, types.ProviderGPS),
		feature(0, 2, 1700000120, types.ProviderNetwork),
	)

	sum := Summarize(fc)
	assert.Equal(t, 3, sum.Features)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), sum.Start)
	assert.Equal(t, time.Unix(1700000120, 0).UTC(), sum.End)
	assert.Equal(t, 2*time.Minute, sum.Duration)
	assert.InDelta(t, 2*111194.93, sum.DistanceMeters, 1)
	assert.Equal(t, map[types.Provider]int{types.ProviderGPS: 2, types.ProviderNetwork: 1}, sum.Providers)
	assert.InDelta(t, 2*111194.93/120, sum.AverageSpeed(), 0.1)

	require.NotNil(t, sum.Bounds)
	assert.Equal(t, Bounds{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 0}, *sum.Bounds)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	for _, fc := range []*types.FeatureCollection{nil, types.NewFeatureCollection()} {
		sum := Summarize(fc)
		assert.Zero(t, sum.Features)
		assert.Zero(t, sum.DistanceMeters)
		assert.True(t, sum.Start.IsZero())
		assert.Nil(t, sum.Bounds)
		assert.Zero(t, sum.AverageSpeed())
	}
}

func TestSummarizeSkipsFeaturesWithoutPoint(t *testing.T) {
	t.Parallel()

	broken := feature(5, 5, 1700000030, types.ProviderPassive)
	broken.Geometry.Coordinates = nil

	fc := types.NewFeatureCollection()
	fc.Features = append(fc.Features,
		feature(0, 0, 1700000000, types.ProviderPassive),
		broken,
		feature(0, 1, 1700000060, types.ProviderPassive),
	)

	sum := Summarize(fc)
	assert.Equal(t, 3, sum.Features)
	assert.InDelta(t, 111194.93, sum.DistanceMeters, 1)
	assert.Equal(t, time.Minute, sum.Duration)
}

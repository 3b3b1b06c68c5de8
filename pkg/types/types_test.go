package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{in: "g", want: ProviderGPS},
		{in: "gps", want: ProviderGPS},
		{in: "N", want: ProviderNetwork},
		{in: " network ", want: ProviderNetwork},
		{in: "p", want: ProviderPassive},
		{in: "passive", want: ProviderPassive},
		{in: "", wantErr: true},
		{in: "wifi", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}

	assert.False(t, Provider("g").Valid())
}

func TestNewFeatureEncoding(t *testing.T) {
	t.Parallel()

	f := NewFeature(Sample{
		Longitude: -122.4,
		Latitude:  37.8,
		Timestamp: 1700000000,
		Provider:  ProviderNetwork,
		Info:      map[string]any{"accuracy": 5.0},
	})

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [-122.4, 37.8]},
		"properties": {
			"timestamp": 1700000000,
			"provider": "network",
			"additional_info": {"accuracy": 5}
		}
	}`, string(data))

	assert.Equal(t, -122.4, f.Longitude())
	assert.Equal(t, 37.8, f.Latitude())
}

func TestNewFeatureCollectionEncodesEmptyArray(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewFeatureCollection())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

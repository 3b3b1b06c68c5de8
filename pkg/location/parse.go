package location

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

// ErrMalformedPayload is returned when command output is not a usable location
var ErrMalformedPayload = errors.New("malformed location payload")

// ParseSample decodes the JSON object printed by the location command. The
// object must carry numeric longitude and latitude fields; the whole object is
// kept as the sample's info. Numbers in info stay json.Number so they are
// written back exactly as the command printed them.
func ParseSample(raw string, provider types.Provider, now time.Time) (types.Sample, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var info map[string]any
	if err := dec.Decode(&info); err != nil {
		return types.Sample{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return types.Sample{}, fmt.Errorf("%w: trailing data after object", ErrMalformedPayload)
	}
	if info == nil {
		return types.Sample{}, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}

	lon, err := numberField(info, "longitude")
	if err != nil {
		return types.Sample{}, err
	}
	lat, err := numberField(info, "latitude")
	if err != nil {
		return types.Sample{}, err
	}

	return types.Sample{
		Longitude: lon,
		Latitude:  lat,
		Timestamp: now.Unix(),
		Provider:  provider,
		Info:      info,
	}, nil
}

func numberField(info map[string]any, key string) (float64, error) {
	v, ok := info[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedPayload, key)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, not a number", ErrMalformedPayload, key, v)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, key, err)
	}
	return f, nil
}

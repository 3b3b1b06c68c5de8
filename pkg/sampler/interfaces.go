package sampler

import (
	"context"

	"github.com/coattosintetico/termux-gps-tracker/pkg/location"
	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks -source=interfaces.go Locator,DocumentStore,WakeLock

// Locator produces raw location readings
type Locator interface {
	Locate(ctx context.Context, provider types.Provider) location.Result
}

// DocumentStore persists the features of a run
type DocumentStore interface {
	Create(path string) error
	Append(path string, feature types.Feature) error
}

// WakeLock keeps the device awake for the lifetime of a run
type WakeLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device id or external id does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose id, external id
	// or selector is already taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrFeatureNotFound is returned when a feature external id is not registered.
	ErrFeatureNotFound = errors.New("device: feature not found")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidFeature is returned when feature validation fails.
	ErrInvalidFeature = errors.New("device: invalid feature")

	// ErrInvalidName is returned when a name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidExternalID is returned when an external id is malformed.
	ErrInvalidExternalID = errors.New("device: invalid external id")

	// ErrInvalidSelector is returned when a selector format is invalid.
	ErrInvalidSelector = errors.New("device: invalid selector")
)

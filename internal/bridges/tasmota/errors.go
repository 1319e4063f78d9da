package tasmota

import "errors"

// Domain errors for the Tasmota bridge package.
var (
	// ErrAddressParse is returned when an MQTT topic does not have the
	// <prefix>/<topic>/<kind> shape. Such traffic is dropped silently.
	ErrAddressParse = errors.New("tasmota: address does not match <prefix>/<topic>/<kind>")

	// ErrUnknownKind is returned for a well-formed address whose kind the
	// bridge does not handle (e.g. STATUS10, SENSOR).
	ErrUnknownKind = errors.New("tasmota: unknown message kind")

	// ErrPayloadDecode is returned when a payload is malformed or lacks
	// its required root object.
	ErrPayloadDecode = errors.New("tasmota: payload decode failed")

	// ErrUnknownCapability marks a capability name that is not in the
	// capability table. It is recorded per capability, never per message.
	ErrUnknownCapability = errors.New("tasmota: unknown capability")

	// ErrUnknownDevice is returned when no discovered device exists for a topic.
	ErrUnknownDevice = errors.New("tasmota: unknown device topic")

	// ErrUnknownFeature is returned when a device has no feature for a capability.
	ErrUnknownFeature = errors.New("tasmota: unknown feature")

	// ErrReadOnly is returned when setting a value on a read-only feature.
	ErrReadOnly = errors.New("tasmota: feature is read-only")

	// ErrInvalidValue is returned when a value is outside the feature bounds.
	ErrInvalidValue = errors.New("tasmota: invalid feature value")

	// ErrNotRunning is returned by operations that need a started bridge.
	ErrNotRunning = errors.New("tasmota: bridge not running")
)

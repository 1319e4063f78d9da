package tasmota

import (
	"fmt"
	"strings"
)

// addressParts is the number of levels in a device topic.
const addressParts = 3

// Kind is the last level of a device topic and selects the payload decoder.
type Kind string

// Message kinds handled by the bridge.
const (
	// KindStatus is the generic status reply (cmnd STATUS with no payload).
	KindStatus Kind = "STATUS"

	// KindCapabilityReport is the STATUS 11 reply carrying output states.
	KindCapabilityReport Kind = "STATUS11"

	// KindDetailReport is the STATUS 8 reply carrying sensor readings.
	// It completes discovery.
	KindDetailReport Kind = "STATUS8"

	// KindState is the periodic telemetry state (tele/<topic>/STATE).
	KindState Kind = "STATE"

	// KindResult is the reply to a command (stat/<topic>/RESULT).
	KindResult Kind = "RESULT"

	// KindPower is the raw relay state (stat/<topic>/POWER).
	KindPower Kind = "POWER"

	// KindLWT is the retained availability message (tele/<topic>/LWT).
	KindLWT Kind = "LWT"
)

var knownKinds = map[Kind]struct{}{
	KindStatus:           {},
	KindCapabilityReport: {},
	KindDetailReport:     {},
	KindState:            {},
	KindResult:           {},
	KindPower:            {},
	KindLWT:              {},
}

// IsHandshake reports whether the kind drives the discovery handshake.
func (k Kind) IsHandshake() bool {
	return k == KindStatus || k == KindCapabilityReport || k == KindDetailReport
}

// IsTelemetry reports whether the kind is published under the telemetry prefix.
func (k Kind) IsTelemetry() bool {
	return k == KindState || k == KindLWT
}

// Address is a parsed device topic.
type Address struct {
	Prefix string
	Topic  string
	Kind   Kind
}

// String reassembles the MQTT topic.
func (a Address) String() string {
	return a.Prefix + "/" + a.Topic + "/" + string(a.Kind)
}

// ParseTopic splits an MQTT topic of the form <prefix>/<topic>/<kind>.
//
// A topic with the wrong shape returns ErrAddressParse. A well-formed topic
// with a kind the bridge does not handle returns the address together with
// ErrUnknownKind.
func ParseTopic(address string) (Address, error) {
	parts := strings.Split(address, "/")
	if len(parts) != addressParts {
		return Address{}, fmt.Errorf("%w: %q", ErrAddressParse, address)
	}
	for _, p := range parts {
		if p == "" {
			return Address{}, fmt.Errorf("%w: %q has an empty level", ErrAddressParse, address)
		}
	}

	addr := Address{Prefix: parts[0], Topic: parts[1], Kind: Kind(parts[2])}
	if _, ok := knownKinds[addr.Kind]; !ok {
		return addr, fmt.Errorf("%w: %s", ErrUnknownKind, addr.Kind)
	}
	return addr, nil
}

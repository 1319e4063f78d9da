package tasmota

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Value is one decoded capability reading.
type Value struct {
	Capability string
	Value      float64
}

// Report is the normalised content of one device message.
type Report struct {
	Kind Kind

	// Name and Model come from a generic status reply when present.
	Name  string
	Model string

	// Values are ordered by capability name.
	Values []Value

	// Skipped lists keys that were not in the capability table or did
	// not carry a usable value.
	Skipped []string

	// Online is the availability carried by an LWT message.
	Online bool
}

// Payload roots for the status replies.
type (
	statusReply struct {
		Status *struct {
			Module       json.RawMessage `json:"Module"`
			DeviceName   string          `json:"DeviceName"`
			FriendlyName []string        `json:"FriendlyName"`
		} `json:"Status"`
	}
	capabilityReply struct {
		StatusSTS map[string]json.RawMessage `json:"StatusSTS"`
	}
	detailReply struct {
		StatusSNS map[string]json.RawMessage `json:"StatusSNS"`
	}
)

// Decode parses a payload of the given kind. It never returns a partial
// report: any error means the message must be ignored.
func Decode(kind Kind, payload []byte) (Report, error) {
	rep := Report{Kind: kind}
	var err error

	switch kind {
	case KindStatus:
		err = decodeStatus(&rep, payload)
	case KindCapabilityReport:
		var reply capabilityReply
		if err = unmarshalRoot(payload, &reply); err == nil {
			if reply.StatusSTS == nil {
				return Report{}, fmt.Errorf("%w: missing StatusSTS", ErrPayloadDecode)
			}
			collectOutputs(&rep, reply.StatusSTS)
		}
	case KindDetailReport:
		var reply detailReply
		if err = unmarshalRoot(payload, &reply); err == nil {
			if reply.StatusSNS == nil {
				return Report{}, fmt.Errorf("%w: missing StatusSNS", ErrPayloadDecode)
			}
			collectOutputs(&rep, reply.StatusSNS)
		}
	case KindState, KindResult:
		var fields map[string]json.RawMessage
		if err = unmarshalRoot(payload, &fields); err == nil {
			collectOutputs(&rep, fields)
		}
	case KindPower:
		v, ok := parseState(strings.TrimSpace(string(payload)))
		if !ok {
			return Report{}, fmt.Errorf("%w: power state %q", ErrPayloadDecode, payload)
		}
		rep.Values = []Value{{Capability: string(KindPower), Value: v}}
	case KindLWT:
		switch strings.TrimSpace(string(payload)) {
		case "Online":
			rep.Online = true
		case "Offline":
			rep.Online = false
		default:
			return Report{}, fmt.Errorf("%w: availability %q", ErrPayloadDecode, payload)
		}
	default:
		return Report{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if err != nil {
		return Report{}, err
	}
	return rep, nil
}

func decodeStatus(rep *Report, payload []byte) error {
	var reply statusReply
	if err := unmarshalRoot(payload, &reply); err != nil {
		return err
	}
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return fmt.Errorf("%w: status is not an object", ErrPayloadDecode)
	}
	// Status is optional: an empty object still advances the handshake.
	if reply.Status == nil {
		return nil
	}

	if len(reply.Status.FriendlyName) > 0 && reply.Status.FriendlyName[0] != "" {
		rep.Name = reply.Status.FriendlyName[0]
	} else {
		rep.Name = reply.Status.DeviceName
	}
	if raw := bytes.TrimSpace(reply.Status.Module); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		rep.Model = strings.Trim(string(raw), `"`)
	}
	return nil
}

func unmarshalRoot(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	return nil
}

// collectOutputs walks one JSON object in key order. Top-level keys are
// looked up as outputs; nested objects are treated as sensors.
func collectOutputs(rep *Report, fields map[string]json.RawMessage) {
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		raw := fields[key]

		var sensor map[string]json.RawMessage
		if len(raw) > 0 && raw[0] == '{' && json.Unmarshal(raw, &sensor) == nil {
			collectSensor(rep, key, sensor)
			continue
		}

		if !IsOutput(key) {
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		v, ok := parseValue(raw)
		if !ok {
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		rep.Values = append(rep.Values, Value{Capability: key, Value: v})
	}
}

func collectSensor(rep *Report, sensor string, fields map[string]json.RawMessage) {
	for _, field := range slices.Sorted(maps.Keys(fields)) {
		name := SensorCapability(sensor, field)
		if _, err := LookupCapability(name); err != nil {
			if errors.Is(err, ErrUnknownCapability) {
				rep.Skipped = append(rep.Skipped, name)
			}
			continue
		}
		v, ok := parseValue(fields[field])
		if !ok {
			rep.Skipped = append(rep.Skipped, name)
			continue
		}
		rep.Values = append(rep.Values, Value{Capability: name, Value: v})
	}
}

// parseValue accepts JSON numbers, booleans and ON/OFF style strings.
func parseValue(raw json.RawMessage) (float64, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return parseState(s)
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		if b {
			return 1, true
		}
		return 0, true
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		return n, true
	}
	return 0, false
}

// parseState maps Tasmota state words to 1/0. Numeric strings pass through.
func parseState(s string) (float64, bool) {
	switch strings.ToUpper(s) {
	case "ON", "TRUE":
		return 1, true
	case "OFF", "FALSE":
		return 0, true
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, true
	}
	return 0, false
}

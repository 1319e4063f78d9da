package tasmota

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-tasmota/internal/device"
)

// Capability describes the feature a Tasmota capability name maps to.
type Capability struct {
	Key         string // Capability key as reported (e.g. "POWER", "Temperature")
	Name        string // Feature display name
	Category    device.Category
	Type        device.FeatureType
	Unit        device.Unit
	ReadOnly    bool
	HasFeedback bool
	Min         float64
	Max         float64
}

// OutputCapabilities are the top-level keys of StatusSTS, StatusSNS, STATE
// and RESULT payloads that become features.
var OutputCapabilities = []Capability{
	// ── Relays ───────────────────────────────────────────────
	{Key: "POWER", Name: "Switch", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER1", Name: "Switch 1", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER2", Name: "Switch 2", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER3", Name: "Switch 3", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER4", Name: "Switch 4", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER5", Name: "Switch 5", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER6", Name: "Switch 6", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER7", Name: "Switch 7", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
	{Key: "POWER8", Name: "Switch 8", Category: device.CategorySwitch, Type: device.TypeBinary, HasFeedback: true, Min: 0, Max: 1},
}

// SensorFields are the numeric fields of StatusSNS sensor objects that become
// features. The capability name is "<sensor>_<field>", e.g. "AM2301_Temperature".
var SensorFields = []Capability{
	// ── Climate ──────────────────────────────────────────────
	{Key: "Temperature", Name: "Temperature", Category: device.CategoryTemperatureSensor, Type: device.TypeDecimal, Unit: device.UnitCelsius, ReadOnly: true, Min: -55, Max: 125},
	{Key: "DewPoint", Name: "Dew point", Category: device.CategoryTemperatureSensor, Type: device.TypeDecimal, Unit: device.UnitCelsius, ReadOnly: true, Min: -55, Max: 125},
	{Key: "Humidity", Name: "Humidity", Category: device.CategoryHumiditySensor, Type: device.TypeDecimal, Unit: device.UnitPercent, ReadOnly: true, Min: 0, Max: 100},
	{Key: "Pressure", Name: "Pressure", Category: device.CategoryPressureSensor, Type: device.TypeDecimal, Unit: device.UnitHectoPascal, ReadOnly: true, Min: 300, Max: 1100},

	// ── Light ────────────────────────────────────────────────
	{Key: "Illuminance", Name: "Illuminance", Category: device.CategoryLightSensor, Type: device.TypeDecimal, Unit: device.UnitLux, ReadOnly: true, Min: 0, Max: 100000},

	// ── Energy ───────────────────────────────────────────────
	{Key: "Power", Name: "Power", Category: device.CategoryEnergySensor, Type: device.TypePower, Unit: device.UnitWatt, ReadOnly: true, Min: 0, Max: 10000},
	{Key: "Voltage", Name: "Voltage", Category: device.CategoryEnergySensor, Type: device.TypeVoltage, Unit: device.UnitVolt, ReadOnly: true, Min: 0, Max: 400},
	{Key: "Current", Name: "Current", Category: device.CategoryEnergySensor, Type: device.TypeCurrent, Unit: device.UnitAmpere, ReadOnly: true, Min: 0, Max: 100},
}

// Lookup maps built once at init.
var (
	outputByKey map[string]*Capability
	sensorByKey map[string]*Capability
)

func init() {
	outputByKey = make(map[string]*Capability, len(OutputCapabilities))
	for i := range OutputCapabilities {
		outputByKey[OutputCapabilities[i].Key] = &OutputCapabilities[i]
	}
	sensorByKey = make(map[string]*Capability, len(SensorFields))
	for i := range SensorFields {
		sensorByKey[SensorFields[i].Key] = &SensorFields[i]
	}
}

// LookupCapability resolves a capability name to its feature definition.
// Output names ("POWER") match directly; sensor names ("AM2301_Temperature")
// match on the field after the last underscore and carry the sensor name in
// the returned display name.
func LookupCapability(name string) (Capability, error) {
	if c, ok := outputByKey[name]; ok {
		return *c, nil
	}

	i := strings.LastIndexByte(name, '_')
	if i > 0 && i < len(name)-1 {
		if c, ok := sensorByKey[name[i+1:]]; ok {
			resolved := *c
			resolved.Key = name
			resolved.Name = name[:i] + " " + c.Name
			return resolved, nil
		}
	}
	return Capability{}, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
}

// SensorCapability joins a sensor object name and one of its fields.
func SensorCapability(sensor, field string) string {
	return sensor + "_" + field
}

// IsOutput reports whether the capability name is a top-level output.
func IsOutput(name string) bool {
	_, ok := outputByKey[name]
	return ok
}

// DeviceExternalID returns "tasmota:<topic>".
func DeviceExternalID(topic string) string {
	return externalIDPrefix + ":" + topic
}

// FeatureExternalID returns "tasmota:<topic>:<capability>".
func FeatureExternalID(topic, capability string) string {
	return DeviceExternalID(topic) + ":" + capability
}

// externalIDPrefix is the vendor prefix of every external id.
const externalIDPrefix = "tasmota"

// newFeature builds the feature for a capability observed on a topic.
func newFeature(topic string, c Capability, value float64) device.Feature {
	extID := FeatureExternalID(topic, c.Key)
	return device.Feature{
		Name:        c.Name,
		Category:    c.Category,
		Type:        c.Type,
		ExternalID:  extID,
		Selector:    device.GenerateSelector(extID),
		ReadOnly:    c.ReadOnly,
		HasFeedback: c.HasFeedback,
		Min:         c.Min,
		Max:         c.Max,
		Unit:        c.Unit,
		LastValue:   value,
	}
}

// TopicFromExternalID extracts the device topic from a device or feature
// external id. It returns "" for ids without the tasmota prefix.
func TopicFromExternalID(externalID string) string {
	rest, ok := strings.CutPrefix(externalID, externalIDPrefix+":")
	if !ok {
		return ""
	}
	topic, _, _ := strings.Cut(rest, ":")
	return topic
}

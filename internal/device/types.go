package device

import (
	"slices"
	"time"
)

// Device is a platform device record. Discovery builds these for candidate
// and confirmed devices; the registry persists them.
type Device struct {
	// ID is the registry UUID. Empty until the device is created.
	ID string `json:"id,omitempty"`

	// ServiceID identifies the service that owns the device.
	ServiceID string `json:"service_id"`

	Name  string `json:"name"`
	Model string `json:"model"`

	// ExternalID is the stable, topic-derived identifier ("tasmota:<topic>").
	ExternalID string `json:"external_id"`
	Selector   string `json:"selector"`

	// ShouldPoll is always false for Tasmota, which pushes state.
	ShouldPoll bool `json:"should_poll"`

	// Features are ordered by discovery.
	Features []Feature `json:"features"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Feature is one controllable or observable capability of a device.
type Feature struct {
	Name     string      `json:"name"`
	Category Category    `json:"category"`
	Type     FeatureType `json:"type"`

	// ExternalID is "<device external id>:<capability>", unique within the device.
	ExternalID string `json:"external_id"`
	Selector   string `json:"selector"`

	ReadOnly    bool    `json:"read_only"`
	HasFeedback bool    `json:"has_feedback"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Unit        Unit    `json:"unit,omitempty"`

	LastValue        float64    `json:"last_value"`
	LastValueChanged *time.Time `json:"last_value_changed,omitempty"`
}

// Category is the functional class of a feature.
type Category string

// Feature categories.
const (
	CategorySwitch            Category = "switch"
	CategoryTemperatureSensor Category = "temperature-sensor"
	CategoryHumiditySensor    Category = "humidity-sensor"
	CategoryPressureSensor    Category = "pressure-sensor"
	CategoryLightSensor       Category = "light-sensor"
	CategoryEnergySensor      Category = "energy-sensor"
)

// FeatureType refines a category with the value encoding.
type FeatureType string

// Feature types.
const (
	TypeBinary  FeatureType = "binary"
	TypeDecimal FeatureType = "decimal"
	TypeInteger FeatureType = "integer"
	TypePower   FeatureType = "power"
	TypeVoltage FeatureType = "voltage"
	TypeCurrent FeatureType = "current"
)

// Unit is the measurement unit of a sensor feature.
type Unit string

// Feature units.
const (
	UnitCelsius     Unit = "celsius"
	UnitPercent     Unit = "percent"
	UnitHectoPascal Unit = "hpa"
	UnitLux         Unit = "lux"
	UnitWatt        Unit = "watt"
	UnitVolt        Unit = "volt"
	UnitAmpere      Unit = "ampere"
)

// DeepCopy returns an independent copy of the device. Features and their
// timestamps are cloned so the copy can be mutated freely.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.Features != nil {
		cpy.Features = make([]Feature, len(d.Features))
		for i, f := range d.Features {
			cpy.Features[i] = f.clone()
		}
	}
	return &cpy
}

func (f Feature) clone() Feature {
	if f.LastValueChanged != nil {
		t := *f.LastValueChanged
		f.LastValueChanged = &t
	}
	return f
}

// Feature returns the feature with the given external id.
func (d *Device) Feature(externalID string) (*Feature, bool) {
	i := slices.IndexFunc(d.Features, func(f Feature) bool { return f.ExternalID == externalID })
	if i < 0 {
		return nil, false
	}
	return &d.Features[i], true
}

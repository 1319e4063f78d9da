package tasmota

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-tasmota/internal/device"
)

func TestCapabilityTables_Exhaustive(t *testing.T) {
	tables := map[string][]Capability{
		"output": OutputCapabilities,
		"sensor": SensorFields,
	}

	for table, caps := range tables {
		seen := make(map[string]bool, len(caps))
		for _, c := range caps {
			if c.Key == "" || c.Name == "" {
				t.Errorf("%s table: entry %+v has empty key or name", table, c)
			}
			if seen[c.Key] {
				t.Errorf("%s table: duplicate key %q", table, c.Key)
			}
			seen[c.Key] = true

			if c.Category == "" || c.Type == "" {
				t.Errorf("%s table: %q has no category or type", table, c.Key)
			}
			if c.Min > c.Max {
				t.Errorf("%s table: %q min %v > max %v", table, c.Key, c.Min, c.Max)
			}
			if strings.Contains(c.Key, "_") {
				t.Errorf("%s table: %q contains the sensor separator", table, c.Key)
			}
		}
	}

	for _, c := range OutputCapabilities {
		if c.Category != device.CategorySwitch || c.Type != device.TypeBinary {
			t.Errorf("output %q is %s/%s, want switch/binary", c.Key, c.Category, c.Type)
		}
		if c.ReadOnly || !c.HasFeedback || c.Min != 0 || c.Max != 1 {
			t.Errorf("output %q = %+v, want writable binary with feedback", c.Key, c)
		}
	}
	for _, c := range SensorFields {
		if !c.ReadOnly {
			t.Errorf("sensor field %q is writable", c.Key)
		}
		if c.Unit == "" {
			t.Errorf("sensor field %q has no unit", c.Key)
		}
	}
}

func TestCapabilityTables_FeaturesValidate(t *testing.T) {
	d := &device.Device{
		Name:       "Tasmota",
		ServiceID:  testServiceID,
		ExternalID: DeviceExternalID(testTopic),
		Selector:   device.GenerateSelector(DeviceExternalID(testTopic)),
	}
	for _, c := range OutputCapabilities {
		d.Features = append(d.Features, newFeature(testTopic, c, 0))
	}
	for _, c := range SensorFields {
		resolved, err := LookupCapability(SensorCapability("BME280", c.Key))
		if err != nil {
			t.Fatalf("LookupCapability(BME280_%s) error = %v", c.Key, err)
		}
		d.Features = append(d.Features, newFeature(testTopic, resolved, c.Min))
	}

	if err := device.ValidateDevice(d); err != nil {
		t.Errorf("device with every capability fails validation: %v", err)
	}
}

func TestLookupCapability(t *testing.T) {
	tests := []struct {
		name         string
		wantName     string
		wantCategory device.Category
		wantErr      error
	}{
		{"POWER", "Switch", device.CategorySwitch, nil},
		{"POWER3", "Switch 3", device.CategorySwitch, nil},
		{"AM2301_Temperature", "AM2301 Temperature", device.CategoryTemperatureSensor, nil},
		{"SI7021_Humidity", "SI7021 Humidity", device.CategoryHumiditySensor, nil},
		{"BMP280_Pressure", "BMP280 Pressure", device.CategoryPressureSensor, nil},
		{"BH1750_Illuminance", "BH1750 Illuminance", device.CategoryLightSensor, nil},
		{"ENERGY_Power", "ENERGY Power", device.CategoryEnergySensor, nil},
		{"Temperature", "", "", ErrUnknownCapability},
		{"_Temperature", "", "", ErrUnknownCapability},
		{"AM2301_", "", "", ErrUnknownCapability},
		{"Dimmer", "", "", ErrUnknownCapability},
		{"power", "", "", ErrUnknownCapability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LookupCapability(tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LookupCapability(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Key != tt.name {
				t.Errorf("Key = %q, want %q", got.Key, tt.name)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
		})
	}
}

func TestLookupCapability_DoesNotMutateTable(t *testing.T) {
	if _, err := LookupCapability("AM2301_Temperature"); err != nil {
		t.Fatal(err)
	}
	for _, c := range SensorFields {
		if c.Key == "Temperature" && c.Name != "Temperature" {
			t.Errorf("table entry mutated: %+v", c)
		}
	}
}

func TestExternalIDs(t *testing.T) {
	if got := DeviceExternalID(testTopic); got != "tasmota:tasmota-device-topic" {
		t.Errorf("DeviceExternalID() = %q", got)
	}
	if got := FeatureExternalID(testTopic, "POWER"); got != "tasmota:tasmota-device-topic:POWER" {
		t.Errorf("FeatureExternalID() = %q", got)
	}

	topics := map[string]string{
		"tasmota:tasmota-device-topic":       "tasmota-device-topic",
		"tasmota:tasmota-device-topic:POWER": "tasmota-device-topic",
		"knx:light-1":                        "",
		"":                                   "",
	}
	for id, want := range topics {
		if got := TopicFromExternalID(id); got != want {
			t.Errorf("TopicFromExternalID(%q) = %q, want %q", id, got, want)
		}
	}
}

package device

import "fmt"

// testDevice returns a valid one-switch device for topic.
func testDevice(topic string) *Device {
	ext := "tasmota:" + topic
	return &Device{
		ServiceID:  "tasmota",
		Name:       "Tasmota",
		Model:      "1",
		ExternalID: ext,
		Selector:   GenerateSelector(ext),
		Features: []Feature{
			testFeature(ext, "POWER"),
		},
	}
}

func testFeature(deviceExternalID, capability string) Feature {
	ext := fmt.Sprintf("%s:%s", deviceExternalID, capability)
	return Feature{
		Name:        "Switch",
		Category:    CategorySwitch,
		Type:        TypeBinary,
		ExternalID:  ext,
		Selector:    GenerateSelector(ext),
		HasFeedback: true,
		Min:         0,
		Max:         1,
	}
}

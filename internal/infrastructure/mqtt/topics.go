package mqtt

import "fmt"

// TopicPrefixService is the base for this service's own topics.
//
// Device topics follow the Tasmota FullTopic "%prefix%/%topic%/" layout,
// <prefix>/<device-topic>/<command-or-kind>, where prefix is cmnd (to the
// device), stat (replies) or tele (telemetry).
const TopicPrefixService = "tasmota-discovery"

// Topics provides builders for the MQTT topics this service uses.
// Prefixes are configurable on the device side, so they are passed in rather
// than hard-coded.
//
//	topics := mqtt.Topics{}
//	topics.Device("cmnd", "tasmota-device-topic", "STATUS")
//	// Returns: "cmnd/tasmota-device-topic/STATUS"
type Topics struct{}

// Device returns the topic for a single device and command or message kind.
//
// Example: cmnd/tasmota-device-topic/STATUS
func (Topics) Device(prefix, deviceTopic, kind string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, deviceTopic, kind)
}

// AllDevices returns a pattern matching every device message under a prefix.
//
// Pattern: stat/+/+
func (Topics) AllDevices(prefix string) string {
	return fmt.Sprintf("%s/+/+", prefix)
}

// ServiceStatus returns the retained online/offline topic for this service.
//
// Example: tasmota-discovery/tasmota-discovery-01/status
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixService, clientID)
}

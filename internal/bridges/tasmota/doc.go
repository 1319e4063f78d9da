// Package tasmota discovers Tasmota devices over MQTT and keeps their
// feature state current.
//
// Discovery is a three-message handshake keyed by the device topic alone:
//
//	stat/<topic>/STATUS    -> cmnd/<topic>/STATUS "11"
//	stat/<topic>/STATUS11  -> cmnd/<topic>/STATUS "8"   (+ state changes)
//	stat/<topic>/STATUS8   -> device confirmed and announced
//
// The pieces, leaves first:
//
//   - ParseTopic splits <prefix>/<topic>/<kind>.
//   - Decode turns a payload into a Report of capability values, using the
//     static tables in capabilities.go.
//   - Reconciler holds the in-progress and confirmed stores and returns the
//     ordered Outcomes (Probe, StateChange, Announcement) of each report.
//   - CommandEmitter renders probes, relay commands and group scans.
//   - Bridge wires these to MQTT with one ordered worker per device topic,
//     consults the RegistryGate at promotion and forwards events to an
//     EventEmitter.
//
// After discovery, tele/<topic>/STATE, stat/<topic>/RESULT and
// stat/<topic>/POWER update the confirmed device's features. An LWT
// "Online" or live telemetry from an unknown topic triggers a STATUS probe.
package tasmota

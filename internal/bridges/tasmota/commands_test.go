package tasmota

import "testing"

func TestCommandEmitter(t *testing.T) {
	e := NewCommandEmitter("cmnd")

	tests := []struct {
		name string
		got  Command
		want Command
	}{
		{"generic probe", e.Probe(testTopic, StatusGeneral), Command{Topic: "cmnd/tasmota-device-topic/STATUS", Payload: ""}},
		{"capability probe", e.Probe(testTopic, StatusCapabilities), Command{Topic: "cmnd/tasmota-device-topic/STATUS", Payload: "11"}},
		{"detail probe", e.Probe(testTopic, StatusDetails), Command{Topic: "cmnd/tasmota-device-topic/STATUS", Payload: "8"}},
		{"power on", e.SetPower(testTopic, "POWER", true), Command{Topic: "cmnd/tasmota-device-topic/POWER", Payload: "ON"}},
		{"second relay off", e.SetPower(testTopic, "POWER2", false), Command{Topic: "cmnd/tasmota-device-topic/POWER2", Payload: "OFF"}},
		{"group scan", e.Scan("tasmotas"), Command{Topic: "cmnd/tasmotas/STATUS", Payload: ""}},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %+v, want %+v", tt.name, tt.got, tt.want)
		}
	}

	custom := NewCommandEmitter("devices/cmd")
	if got := custom.Probe("plug", StatusDetails).Topic; got != "devices/cmd/plug/STATUS" {
		t.Errorf("custom prefix topic = %q", got)
	}
}

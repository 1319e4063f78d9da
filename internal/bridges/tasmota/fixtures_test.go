package tasmota

import (
	"context"
	"sync"
	"testing"
)

const (
	testServiceID = "service-uuid-random"
	testTopic     = "tasmota-device-topic"
)

// Payloads captured from a Sonoff Basic running Tasmota 8.x.
const (
	statusPayload   = `{"Status":{"Module":1,"DeviceName":"Tasmota","FriendlyName":["Tasmota"],"Topic":"tasmota-device-topic","ButtonTopic":"0","Power":0,"PowerOnState":3}}`
	status11Payload = `{"StatusSTS":{"Time":"2020-03-21T17:02:52","Uptime":"0T00:10:13","Heap":26,"POWER":"OFF","Wifi":{"AP":1,"SSId":"home","RSSI":100}}}`
	status8Payload  = `{"StatusSNS":{"Time":"2020-03-21T17:02:52"}}`
	sensorPayload   = `{"StatusSNS":{"Time":"2020-03-21T17:02:52","AM2301":{"Temperature":21.4,"Humidity":48.2},"TempUnit":"C"}}`
)

func mustDecode(t *testing.T, kind Kind, payload string) Report {
	t.Helper()
	rep, err := Decode(kind, []byte(payload))
	if err != nil {
		t.Fatalf("Decode(%s) error = %v", kind, err)
	}
	return rep
}

// stubGate is a RegistryGate backed by a set of known external ids.
type stubGate struct {
	mu     sync.Mutex
	known  map[string]bool
	calls  []string
	onCall func()
}

func newStubGate(known ...string) *stubGate {
	g := &stubGate{known: make(map[string]bool)}
	for _, id := range known {
		g.known[id] = true
	}
	return g
}

func (g *stubGate) ExistsByExternalID(_ context.Context, externalID string) bool {
	g.mu.Lock()
	g.calls = append(g.calls, externalID)
	onCall := g.onCall
	known := g.known[externalID]
	g.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	return known
}

func (g *stubGate) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func probes(outcomes []Outcome) []Probe {
	var out []Probe
	for _, o := range outcomes {
		if p, ok := o.(Probe); ok {
			out = append(out, p)
		}
	}
	return out
}

func stateChanges(outcomes []Outcome) []StateChange {
	var out []StateChange
	for _, o := range outcomes {
		if s, ok := o.(StateChange); ok {
			out = append(out, s)
		}
	}
	return out
}

func announcements(outcomes []Outcome) []Announcement {
	var out []Announcement
	for _, o := range outcomes {
		if a, ok := o.(Announcement); ok {
			out = append(out, a)
		}
	}
	return out
}

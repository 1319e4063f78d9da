package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tasmota/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tasmota/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line-protocol bodies sent to
// /api/v2/write.
type fakeInflux struct {
	mu       sync.Mutex
	writes   []string
	failNext bool
	server   *httptest.Server
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
			f.mu.Lock()
			fail := f.failNext
			f.failNext = false
			if !fail {
				f.writes = append(f.writes, string(body))
			}
			f.mu.Unlock()
			if fail {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"code":"invalid","message":"bad point"}`) //nolint:errcheck // test server
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "tasmota-dev-token",
		Org:           "home",
		Bucket:        "tasmota",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if _, err := influxdb.Connect(testConfig("http://127.0.0.1:1")); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteFeatureState(t *testing.T) {
	fake := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteFeatureState(influxdb.FeaturePoint{
		DeviceExternalID:  "tasmota:kitchen-plug",
		FeatureExternalID: "tasmota:kitchen-plug:POWER",
		Category:          "switch",
		Value:             1,
		Time:              time.Unix(1767225600, 0),
	})
	client.WriteDiscovery("tasmota:kitchen-plug", 1, true)
	client.Flush()

	body := fake.body()
	for _, want := range []string{
		"feature_state,",
		`category=switch`,
		`device=tasmota:kitchen-plug`,
		`feature=tasmota:kitchen-plug:POWER`,
		"value=1",
		"1767225600000000000",
		"device_discovery,device=tasmota:kitchen-plug",
		"features=1i",
		"new=true",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("write body missing %q:\n%s", want, body)
		}
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	fake := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	got := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case got <- err:
		default:
		}
	})

	fake.mu.Lock()
	fake.failNext = true
	fake.mu.Unlock()

	client.WriteFeatureState(influxdb.FeaturePoint{DeviceExternalID: "tasmota:a", FeatureExternalID: "tasmota:a:POWER"})
	client.Flush()

	select {
	case err := <-got:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write error not delivered to callback")
	}
}

func TestClose_StopsWrites(t *testing.T) {
	fake := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Must not panic or block.
	client.WriteFeatureState(influxdb.FeaturePoint{DeviceExternalID: "tasmota:a"})
	client.Flush()
}

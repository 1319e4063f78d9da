package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/nerrad567/gray-logic-tasmota/internal/auth"
	"github.com/nerrad567/gray-logic-tasmota/internal/bridges/tasmota"
	"github.com/nerrad567/gray-logic-tasmota/internal/device"
)

func TestListDevices(t *testing.T) {
	srv, _, registry := testServer(t)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleViewer)

	w := do(t, router, http.MethodGet, "/api/v1/devices", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var empty struct {
		Count int `json:"count"`
	}
	decodeBody(t, w, &empty)
	if empty.Count != 0 {
		t.Errorf("count = %d, want 0", empty.Count)
	}

	d := switchDevice("kitchen")
	if err := registry.CreateDevice(t.Context(), d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 1},
		{"own service", "?service_id=tasmota", 1},
		{"other service", "?service_id=zigbee", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, "/api/v1/devices"+tt.query, "", token)
			var resp struct {
				Devices []device.Device `json:"devices"`
				Count   int             `json:"count"`
			}
			decodeBody(t, w, &resp)
			if resp.Count != tt.want || len(resp.Devices) != tt.want {
				t.Errorf("count = %d, devices = %d, want %d", resp.Count, len(resp.Devices), tt.want)
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	srv, _, registry := testServer(t)
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleViewer)

	d := switchDevice("kitchen")
	if err := registry.CreateDevice(t.Context(), d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	w := do(t, router, http.MethodGet, "/api/v1/devices/"+d.ID, "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var got device.Device
	decodeBody(t, w, &got)
	if got.ExternalID != "tasmota:kitchen" || len(got.Features) != 1 {
		t.Errorf("device = %+v", got)
	}

	w = do(t, router, http.MethodGet, "/api/v1/devices/missing", "", token)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", w.Code)
	}
}

func TestListDiscovered(t *testing.T) {
	srv, bridge, _ := testServer(t)
	bridge.add("kitchen")
	bridge.existing["kitchen"] = true

	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/tasmota/discovered", "", tokenFor(t, auth.RoleViewer))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Devices []struct {
			ExternalID string `json:"external_id"`
			Topic      string `json:"topic"`
			Existing   bool   `json:"existing"`
		} `json:"devices"`
		Count int `json:"count"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	got := resp.Devices[0]
	if got.ExternalID != "tasmota:kitchen" || got.Topic != "kitchen" || !got.Existing {
		t.Errorf("discovered = %+v", got)
	}
}

func TestSaveDiscovered(t *testing.T) {
	srv, bridge, registry := testServer(t)
	bridge.add("kitchen")
	router := srv.buildRouter()
	token := tokenFor(t, auth.RoleAdmin)

	w := do(t, router, http.MethodPost, "/api/v1/tasmota/discovered/kitchen", "", token)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var saved device.Device
	decodeBody(t, w, &saved)
	if saved.ID == "" {
		t.Error("saved device should carry a registry id")
	}
	if !registry.ExistsByExternalID(t.Context(), "tasmota:kitchen") {
		t.Error("registry should hold the saved device")
	}

	w = do(t, router, http.MethodPost, "/api/v1/tasmota/discovered/kitchen", "", token)
	if w.Code != http.StatusConflict {
		t.Errorf("second save status = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPost, "/api/v1/tasmota/discovered/garage", "", token)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown topic status = %d, want 404", w.Code)
	}
}

func TestSaveDiscovered_Invalid(t *testing.T) {
	srv, bridge, _ := testServer(t)
	bridge.add("kitchen")
	bridge.discovered["kitchen"].Name = ""

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/tasmota/discovered/kitchen", "", tokenFor(t, auth.RoleAdmin))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422; body: %s", w.Code, w.Body.String())
	}
}

func TestScan(t *testing.T) {
	tests := []struct {
		name    string
		scanErr error
		want    int
	}{
		{"sent", nil, http.StatusAccepted},
		{"bridge stopped", tasmota.ErrNotRunning, http.StatusServiceUnavailable},
		{"publish failed", errors.New("broker gone"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, bridge, _ := testServer(t)
			bridge.scanErr = tt.scanErr

			w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/tasmota/scan", "", tokenFor(t, auth.RoleAdmin))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if bridge.scans != 1 {
				t.Errorf("scans = %d, want 1", bridge.scans)
			}
		})
	}
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		setErr error
		want   int
	}{
		{"on", `{"capability":"POWER","value":1}`, nil, http.StatusAccepted},
		{"off", `{"capability":"POWER","value":0}`, nil, http.StatusAccepted},
		{"invalid json", `{"capability":`, nil, http.StatusBadRequest},
		{"missing value", `{"capability":"POWER"}`, nil, http.StatusBadRequest},
		{"missing capability", `{"value":1}`, nil, http.StatusBadRequest},
		{"unknown device", `{"capability":"POWER","value":1}`, fmt.Errorf("%w: kitchen", tasmota.ErrUnknownDevice), http.StatusNotFound},
		{"unknown feature", `{"capability":"POWER2","value":1}`, fmt.Errorf("%w: POWER2", tasmota.ErrUnknownFeature), http.StatusNotFound},
		{"read only", `{"capability":"AM2301_Temperature","value":1}`, tasmota.ErrReadOnly, http.StatusUnprocessableEntity},
		{"out of range", `{"capability":"POWER","value":5}`, tasmota.ErrInvalidValue, http.StatusUnprocessableEntity},
		{"bridge stopped", `{"capability":"POWER","value":1}`, tasmota.ErrNotRunning, http.StatusServiceUnavailable},
		{"publish failed", `{"capability":"POWER","value":1}`, errors.New("not connected"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, bridge, _ := testServer(t)
			bridge.setErr = tt.setErr

			w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/tasmota/devices/kitchen/value", tt.body, tokenFor(t, auth.RoleOperator))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusAccepted {
				if len(bridge.sets) != 1 || bridge.sets[0].topic != "kitchen" || bridge.sets[0].capability != "POWER" {
					t.Errorf("sets = %+v", bridge.sets)
				}
			}
		})
	}
}

func TestWriteBridgeError_Body(t *testing.T) {
	srv, bridge, _ := testServer(t)
	bridge.setErr = tasmota.ErrReadOnly

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/tasmota/devices/kitchen/value",
		`{"capability":"POWER","value":1}`, tokenFor(t, auth.RoleOperator))

	var e Error
	decodeBody(t, w, &e)
	if e.Status != http.StatusUnprocessableEntity || e.Code != ErrCodeValidation || e.Message == "" {
		t.Errorf("error body = %+v", e)
	}
}

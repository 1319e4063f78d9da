package api

import (
	"net/http"
	"testing"

	"github.com/nerrad567/gray-logic-tasmota/internal/audit"
	"github.com/nerrad567/gray-logic-tasmota/internal/auth"
)

func TestAudit_RecordsOperatorActions(t *testing.T) {
	srv, bridge, _ := testServer(t)
	bridge.add("kitchen")
	h := srv.buildRouter()
	admin := tokenFor(t, auth.RoleAdmin)

	for _, req := range []struct{ path, body string }{
		{"/api/v1/tasmota/scan", ""},
		{"/api/v1/tasmota/discovered/kitchen", ""},
		{"/api/v1/tasmota/devices/kitchen/value", `{"capability":"POWER","value":1}`},
	} {
		if w := do(t, h, http.MethodPost, req.path, req.body, admin); w.Code >= 300 {
			t.Fatalf("POST %s = %d: %s", req.path, w.Code, w.Body.String())
		}
	}

	w := do(t, h, http.MethodGet, "/api/v1/audit", "", admin)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /audit = %d", w.Code)
	}
	var page audit.Page
	decodeBody(t, w, &page)

	if page.Total != 3 {
		t.Fatalf("total = %d, want 3 (%+v)", page.Total, page.Entries)
	}
	actions := map[audit.Action]audit.Entry{}
	for _, e := range page.Entries {
		actions[e.Action] = e
		if e.Subject != "tester" {
			t.Errorf("%s subject = %q, want tester", e.Action, e.Subject)
		}
	}
	if e := actions[audit.ActionSetValue]; e.Topic != "kitchen" || e.Details["capability"] != "POWER" {
		t.Errorf("set_value entry = %+v", e)
	}
	if e := actions[audit.ActionSave]; e.Topic != "kitchen" || e.Details["external_id"] != "tasmota:kitchen" {
		t.Errorf("save entry = %+v", e)
	}
	if _, ok := actions[audit.ActionScan]; !ok {
		t.Error("scan not recorded")
	}

	w = do(t, h, http.MethodGet, "/api/v1/audit?action=scan", "", admin)
	decodeBody(t, w, &page)
	if page.Total != 1 || page.Entries[0].Action != audit.ActionScan {
		t.Errorf("filtered page = %+v", page)
	}
}

func TestAudit_FailedActionsNotRecorded(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.buildRouter()
	admin := tokenFor(t, auth.RoleAdmin)

	do(t, h, http.MethodPost, "/api/v1/tasmota/discovered/ghost", "", admin)

	w := do(t, h, http.MethodGet, "/api/v1/audit", "", admin)
	var page audit.Page
	decodeBody(t, w, &page)
	if page.Total != 0 {
		t.Errorf("total = %d, want 0", page.Total)
	}
}

func TestAudit_Access(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.buildRouter()

	tests := []struct {
		name string
		path string
		role auth.Role
		want int
	}{
		{"viewer forbidden", "/api/v1/audit", auth.RoleViewer, http.StatusForbidden},
		{"operator forbidden", "/api/v1/audit", auth.RoleOperator, http.StatusForbidden},
		{"admin allowed", "/api/v1/audit", auth.RoleAdmin, http.StatusOK},
		{"bad limit", "/api/v1/audit?limit=ten", auth.RoleAdmin, http.StatusBadRequest},
		{"negative offset", "/api/v1/audit?offset=-1", auth.RoleAdmin, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.path, "", tokenFor(t, tt.role))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

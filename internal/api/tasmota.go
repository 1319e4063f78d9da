package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tasmota/internal/audit"
	"github.com/nerrad567/gray-logic-tasmota/internal/bridges/tasmota"
	"github.com/nerrad567/gray-logic-tasmota/internal/device"
)

// setValueRequest is the body of POST /tasmota/devices/{topic}/value.
type setValueRequest struct {
	Capability string   `json:"capability"`
	Value      *float64 `json:"value"`
}

// handleListDiscovered returns every device that completed discovery,
// flagged with whether the registry already holds it.
func (s *Server) handleListDiscovered(w http.ResponseWriter, r *http.Request) {
	devices := s.bridge.DiscoveredDevices(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleSaveDiscovered stores a discovered device in the registry.
func (s *Server) handleSaveDiscovered(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	d, ok := s.bridge.Discovered(topic)
	if !ok {
		writeNotFound(w, "no discovered device on topic "+topic)
		return
	}

	if err := s.registry.CreateDevice(r.Context(), d); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already registered")
		case isValidationError(err):
			writeStatus(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.logger.Error("saving discovered device", "topic", topic, "error", err)
			writeInternalError(w, "failed to save device")
		}
		return
	}

	s.logger.Info("discovered device saved",
		"topic", topic,
		"id", d.ID,
		"subject", subjectOf(r),
	)
	s.recordAudit(r, &audit.Entry{
		Action:  audit.ActionSave,
		Topic:   topic,
		Details: map[string]any{"device_id": d.ID, "external_id": d.ExternalID},
	})
	writeJSON(w, http.StatusCreated, d)
}

// handleScan publishes a STATUS request to the configured group topics.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Scan(r.Context()); err != nil {
		writeBridgeError(w, err)
		return
	}
	s.recordAudit(r, &audit.Entry{Action: audit.ActionScan})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan sent"})
}

// handleSetValue switches an output. The device confirms asynchronously;
// the new state arrives on the "device.new_state" channel.
func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	var req setValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Capability == "" || req.Value == nil {
		writeBadRequest(w, "capability and value are required")
		return
	}

	if err := s.bridge.SetValue(r.Context(), topic, req.Capability, *req.Value); err != nil {
		writeBridgeError(w, err)
		return
	}

	s.logger.Info("value sent",
		"topic", topic,
		"capability", req.Capability,
		"value", *req.Value,
		"subject", subjectOf(r),
	)
	s.recordAudit(r, &audit.Entry{
		Action:  audit.ActionSetValue,
		Topic:   topic,
		Details: map[string]any{"capability": req.Capability, "value": *req.Value},
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "command sent"})
}

// writeBridgeError maps bridge errors onto HTTP statuses.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasmota.ErrUnknownDevice), errors.Is(err, tasmota.ErrUnknownFeature):
		writeNotFound(w, err.Error())
	case errors.Is(err, tasmota.ErrReadOnly), errors.Is(err, tasmota.ErrInvalidValue):
		writeStatus(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, tasmota.ErrNotRunning):
		writeStatus(w, http.StatusServiceUnavailable, "tasmota bridge is not running")
	default:
		writeStatus(w, http.StatusBadGateway, "publishing to the MQTT broker failed")
	}
}

// isValidationError reports whether err comes from device validation.
func isValidationError(err error) bool {
	for _, target := range []error{
		device.ErrInvalidDevice,
		device.ErrInvalidFeature,
		device.ErrInvalidName,
		device.ErrInvalidExternalID,
		device.ErrInvalidSelector,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func subjectOf(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}

package main

import (
	"context"
	"errors"
	"strings"

	"github.com/nerrad567/gray-logic-tasmota/internal/api"
	"github.com/nerrad567/gray-logic-tasmota/internal/bridges/tasmota"
	"github.com/nerrad567/gray-logic-tasmota/internal/device"
	"github.com/nerrad567/gray-logic-tasmota/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-tasmota/internal/infrastructure/logging"
)

// eventFanout delivers bridge events to the registry, WebSocket clients and
// InfluxDB. hub and influx may be nil.
type eventFanout struct {
	registry *device.Registry
	hub      *api.Hub
	influx   *influxdb.Client
	log      *logging.Logger
}

// EmitStateChange implements tasmota.EventEmitter.
func (f *eventFanout) EmitStateChange(ctx context.Context, sc tasmota.StateChange) {
	// Only saved devices are persisted; discovered-but-unsaved ones still
	// reach WebSocket clients.
	if err := f.registry.SetFeatureState(ctx, sc.FeatureExternalID, sc.Value); err != nil {
		if errors.Is(err, device.ErrFeatureNotFound) {
			f.log.Debug("state for unregistered feature", "feature", sc.FeatureExternalID)
		} else {
			f.log.Error("persisting feature state", "feature", sc.FeatureExternalID, "error", err)
		}
	}

	if f.hub != nil {
		f.hub.Broadcast(api.ChannelNewState, sc)
	}

	if f.influx != nil {
		deviceID, capability := splitFeatureID(sc.FeatureExternalID)
		point := influxdb.FeaturePoint{
			DeviceExternalID:  deviceID,
			FeatureExternalID: sc.FeatureExternalID,
			Value:             sc.Value,
		}
		if c, err := tasmota.LookupCapability(capability); err == nil {
			point.Category = string(c.Category)
		}
		f.influx.WriteFeatureState(point)
	}
}

// EmitDeviceAnnounced implements tasmota.EventEmitter.
func (f *eventFanout) EmitDeviceAnnounced(_ context.Context, a tasmota.Announcement) {
	f.log.Info("device discovered",
		"external_id", a.Device.ExternalID,
		"name", a.Device.Name,
		"features", len(a.Device.Features),
		"new", a.IsNew,
	)

	if f.hub != nil {
		f.hub.Broadcast(api.ChannelNewDevice, a)
	}
	if f.influx != nil {
		f.influx.WriteDiscovery(a.Device.ExternalID, len(a.Device.Features), a.IsNew)
	}
}

// splitFeatureID splits "tasmota:<topic>:<capability>" into the device
// external id and the capability.
func splitFeatureID(featureID string) (deviceID, capability string) {
	i := strings.LastIndexByte(featureID, ':')
	if i < 0 {
		return featureID, ""
	}
	return featureID[:i], featureID[i+1:]
}

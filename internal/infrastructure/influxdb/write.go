package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementFeatureState = "feature_state"
	measurementDiscovery    = "device_discovery"
)

// FeaturePoint is one observed feature value.
type FeaturePoint struct {
	DeviceExternalID  string
	FeatureExternalID string
	Category          string
	Value             float64

	// Time defaults to now when zero.
	Time time.Time
}

// WriteFeatureState queues a feature value. Tags are the device and feature
// external ids plus the category, all low cardinality per installation.
func (c *Client) WriteFeatureState(p FeaturePoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(featurePoint(p))
}

func featurePoint(p FeaturePoint) *write.Point {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := map[string]string{
		"device":  p.DeviceExternalID,
		"feature": p.FeatureExternalID,
	}
	if p.Category != "" {
		tags["category"] = p.Category
	}
	return write.NewPoint(measurementFeatureState, tags, map[string]any{"value": p.Value}, ts)
}

// WriteDiscovery queues a promotion event: features is the feature count at
// promotion and isNew whether the registry had not seen the device before.
func (c *Client) WriteDiscovery(deviceExternalID string, features int, isNew bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurementDiscovery,
		map[string]string{"device": deviceExternalID},
		map[string]any{"features": features, "new": isNew},
		time.Now(),
	))
}

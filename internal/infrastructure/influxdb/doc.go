// Package influxdb records Tasmota feature values as time series.
//
// It wraps influxdb-client-go v2 with connection checks and a non-blocking,
// batched write API. Every live state change seen by discovery becomes one
// point in the "feature_state" measurement, and every promotion one point in
// "device_discovery".
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteFeatureState(influxdb.FeaturePoint{
//	    DeviceExternalID:  "tasmota:kitchen-plug",
//	    FeatureExternalID: "tasmota:kitchen-plug:POWER",
//	    Category:          "switch",
//	    Value:             1,
//	})
//
// Writes are dropped silently while disconnected; async write failures are
// reported through SetOnError.
package influxdb

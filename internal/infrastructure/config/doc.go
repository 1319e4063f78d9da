// Package config loads the tasmotad configuration.
//
// Values are resolved in three layers: built-in defaults, then the YAML
// file, then TASMOTA_* environment variables. Validate runs last and
// rejects unusable settings, including an API without a JWT secret.
//
// Keep secrets (MQTT password, InfluxDB token, JWT secret) in the
// environment rather than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config

// Package logging provides structured logging for the Tasmota discovery service.
//
// It is a thin layer over log/slog:
//
//   - JSON output for production, text output for development
//   - service and version attributes on every entry
//   - level filtering (debug, info, warn, error)
//
// Configured from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	bridgeLog := logger.Component("tasmota")
//	bridgeLog.Debug("payload dropped", "topic", topic, "error", err)
//
// Never log MQTT or InfluxDB credentials.
package logging

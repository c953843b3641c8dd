// Package logging provides structured logging for showctl.
//
// It wraps log/slog with JSON or text output, level filtering and the
// default fields service and version. Components tag their output with
// Component:
//
//	log := logging.New(cfg.Logging, version)
//	execLog := log.Component("executor")
//	execLog.Info("action started", "scene_id", 2)
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets: JWT tokens, the operator password, MQTT or InfluxDB
// credentials.
package logging

// Package config loads and validates showctl configuration.
//
// Values come from defaults, then the YAML file, then SHOWCTL_* environment
// variables (e.g. SHOWCTL_SECURITY_JWT_SECRET, SHOWCTL_MQTT_PASSWORD).
// Secrets belong in the environment; the file should be mode 0600.
//
// The file also carries the cue-list scenes and the cron schedules. Both
// are read once at startup.
//
// Usage:
//
//	cfg, err := config.Load("configs/showctl.yaml")
//	if err != nil {
//	    return err
//	}
package config

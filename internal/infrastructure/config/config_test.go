package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	validJWTSecret = "test-secret-key-at-least-32-chars!"
	validHash      = "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHQ$aGFzaGhhc2g"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// validConfig returns defaults plus the fields that have no default.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	cfg.Security.Operator.PasswordHash = validHash
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
show:
  name: "Quiz Night"
database:
  path: "/tmp/show.db"
mqtt:
  broker:
    host: "broker.local"
display:
  player: "projector-left"
lighting:
  bulb: "stage-wash"
security:
  jwt:
    secret: "`+validJWTSecret+`"
  operator:
    password_hash: "`+validHash+`"
scenes:
  - name: "Round One"
    autostart: intro
    cues:
      - name: intro
        steps:
          - light: {mode: color, hue: 220, saturation: 90, brightness: 70}
          - play: {path: "media/round1.mp4", wait: true, resume: true}
          - wait_position: 15000
          - delay: 1500ms
          - stop_display: true
        on_stop:
          reset_light: true
          stop_display: true
schedules:
  - scene: "Round One"
    action: start
    cron: "0 19 * * FRI"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Show.Name != "Quiz Night" {
		t.Errorf("Show.Name = %q", cfg.Show.Name)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT broker = %s:%d, want broker.local:1883", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)
	}
	if cfg.Display.Player != "projector-left" || cfg.Lighting.Bulb != "stage-wash" {
		t.Errorf("devices = %q/%q", cfg.Display.Player, cfg.Lighting.Bulb)
	}

	if len(cfg.Scenes) != 1 || len(cfg.Scenes[0].Cues) != 1 {
		t.Fatalf("scenes = %+v", cfg.Scenes)
	}
	steps := cfg.Scenes[0].Cues[0].Steps
	if len(steps) != 5 {
		t.Fatalf("steps = %d, want 5", len(steps))
	}
	if steps[0].Light == nil || steps[0].Light.Hue != 220 {
		t.Errorf("light step = %+v", steps[0].Light)
	}
	if steps[1].Play == nil || !steps[1].Play.Resume {
		t.Errorf("play step = %+v", steps[1].Play)
	}
	if steps[2].WaitPosition == nil || *steps[2].WaitPosition != 15000 {
		t.Errorf("wait_position step = %v", steps[2].WaitPosition)
	}
	if steps[3].Delay != 1500*time.Millisecond {
		t.Errorf("delay = %v, want 1.5s", steps[3].Delay)
	}
	if !cfg.Scenes[0].Cues[0].OnStop.ResetLight {
		t.Error("on_stop.reset_light not loaded")
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Action != ScheduleStart {
		t.Errorf("schedules = %+v", cfg.Schedules)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "database: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/from/file.db"
`)
	t.Setenv("SHOWCTL_DATABASE_PATH", "/from/env.db")
	t.Setenv("SHOWCTL_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SHOWCTL_MQTT_USERNAME", "showctl")
	t.Setenv("SHOWCTL_MQTT_PASSWORD", "hunter2")
	t.Setenv("SHOWCTL_API_PORT", "9090")
	t.Setenv("SHOWCTL_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SHOWCTL_SECURITY_JWT_SECRET", validJWTSecret)
	t.Setenv("SHOWCTL_SECURITY_OPERATOR_PASSWORD_HASH", validHash)
	t.Setenv("SHOWCTL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := map[string][2]string{
		"Database.Path":    {cfg.Database.Path, "/from/env.db"},
		"MQTT.Broker.Host": {cfg.MQTT.Broker.Host, "mqtt.example.com"},
		"MQTT.Auth.User":   {cfg.MQTT.Auth.Username, "showctl"},
		"MQTT.Auth.Pass":   {cfg.MQTT.Auth.Password, "hunter2"},
		"InfluxDB.Token":   {cfg.InfluxDB.Token, "secret-token"},
		"JWT.Secret":       {cfg.Security.JWT.Secret, validJWTSecret},
		"Logging.Level":    {cfg.Logging.Level, "debug"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	path := writeConfig(t, "{}")
	t.Setenv("SHOWCTL_API_PORT", "not-a-number")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for malformed env override, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	seek := int64(1000)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"missing player", func(c *Config) { c.Display.Player = "" }, "display.player"},
		{"process without binary", func(c *Config) { c.Display.Process.Enabled = true }, "display.process.binary"},
		{"missing bulb", func(c *Config) { c.Lighting.Bulb = "" }, "lighting.bulb"},
		{"port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, "security.jwt.secret is required"},
		{"short JWT secret", func(c *Config) { c.Security.JWT.Secret = "short" }, "at least 32"},
		{"missing operator hash", func(c *Config) { c.Security.Operator.PasswordHash = "" }, "password_hash"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"scene without name", func(c *Config) {
			c.Scenes = []SceneConfig{{}}
		}, "scenes[0].name"},
		{"duplicate scene", func(c *Config) {
			c.Scenes = []SceneConfig{{Name: "A"}, {Name: "A"}}
		}, "duplicate scene name"},
		{"duplicate cue", func(c *Config) {
			c.Scenes = []SceneConfig{{Name: "A", Cues: []CueConfig{{Name: "x"}, {Name: "x"}}}}
		}, "duplicate cue name"},
		{"step with two kinds", func(c *Config) {
			c.Scenes = []SceneConfig{{Name: "A", Cues: []CueConfig{{Name: "x", Steps: []StepConfig{{Seek: &seek, Pause: true}}}}}}
		}, "exactly one step kind"},
		{"empty step", func(c *Config) {
			c.Scenes = []SceneConfig{{Name: "A", Cues: []CueConfig{{Name: "x", Steps: []StepConfig{{}}}}}}
		}, "exactly one step kind"},
		{"unknown autostart", func(c *Config) {
			c.Scenes = []SceneConfig{{Name: "A", Autostart: "nope"}}
		}, "autostart"},
		{"schedule bad action", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Scene: "A", Action: "pause", Cron: "* * * * *"}}
		}, "schedules[0].action"},
		{"schedule missing cron", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Scene: "A", Action: ScheduleStop}}
		}, "schedules[0].cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_ReportsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Path = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"database.path", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := &Config{API: APIConfig{Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60, Shutdown: 10}}}

	if got := cfg.ReadTimeout(); got != 30*time.Second {
		t.Errorf("ReadTimeout() = %v", got)
	}
	if got := cfg.WriteTimeout(); got != 45*time.Second {
		t.Errorf("WriteTimeout() = %v", got)
	}
	if got := cfg.IdleTimeout(); got != time.Minute {
		t.Errorf("IdleTimeout() = %v", got)
	}
	if got := cfg.ShutdownTimeout(); got != 10*time.Second {
		t.Errorf("ShutdownTimeout() = %v", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("default Database.Path is empty")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("default API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Display.Player == "" || cfg.Lighting.Bulb == "" {
		t.Error("default device names are empty")
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SHOWCTL_DATABASE_PATH.
const EnvPrefix = "SHOWCTL_"

// Config is the root configuration for showctl.
// It is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Show      ShowConfig       `yaml:"show" envPrefix:"SHOW_"`
	Database  DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	MQTT      MQTTConfig       `yaml:"mqtt" envPrefix:"MQTT_"`
	Display   DisplayConfig    `yaml:"display" envPrefix:"DISPLAY_"`
	Lighting  LightingConfig   `yaml:"lighting" envPrefix:"LIGHTING_"`
	API       APIConfig        `yaml:"api" envPrefix:"API_"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	Security  SecurityConfig   `yaml:"security" envPrefix:"SECURITY_"`
	InfluxDB  InfluxDBConfig   `yaml:"influxdb" envPrefix:"INFLUXDB_"`
	Logging   LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
	Scenes    []SceneConfig    `yaml:"scenes" env:"-"`
	Schedules []ScheduleConfig `yaml:"schedules" env:"-"`
}

// ShowConfig identifies the installation.
type ShowConfig struct {
	Name     string `yaml:"name" env:"NAME"`
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"PATH"`
	WALMode     bool   `yaml:"wal_mode" env:"WAL_MODE"`
	BusyTimeout int    `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos" env:"QOS"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	TLS      bool   `yaml:"tls" env:"TLS"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MQTTReconnectConfig contains reconnection backoff in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DisplayConfig selects the media player bridge.
type DisplayConfig struct {
	// Player is the device name in showctl/command/display/{player}.
	Player string `yaml:"player" env:"PLAYER"`

	// Placeholder shows the idle placeholder at startup.
	Placeholder bool `yaml:"placeholder"`

	// Process optionally supervises the player bridge executable.
	Process ProcessConfig `yaml:"process"`
}

// ProcessConfig configures a supervised external process.
type ProcessConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Binary          string        `yaml:"binary"`
	Args            []string      `yaml:"args"`
	RestartDelay    time.Duration `yaml:"restart_delay"`
	MaxRestartDelay time.Duration `yaml:"max_restart_delay"`

	// MaxRestarts limits restart attempts. 0 means unlimited.
	MaxRestarts int `yaml:"max_restarts"`
}

// LightingConfig selects the bulb bridge.
type LightingConfig struct {
	// Bulb is the device name in showctl/command/lighting/{bulb}.
	Bulb string `yaml:"bulb" env:"BULB"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"HOST"`
	Port     int              `yaml:"port" env:"PORT"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read     int `yaml:"read"`
	Write    int `yaml:"write"`
	Idle     int `yaml:"idle"`
	Shutdown int `yaml:"shutdown"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket hub settings in seconds and bytes.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" envPrefix:"JWT_"`
	Operator  OperatorConfig  `yaml:"operator" envPrefix:"OPERATOR_"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains token settings. TTL is in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret" env:"SECRET"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// OperatorConfig is the single operator account.
type OperatorConfig struct {
	Username string `yaml:"username" env:"USERNAME"`

	// PasswordHash is an argon2id PHC string, see auth.HashPassword.
	PasswordHash string `yaml:"password_hash" env:"PASSWORD_HASH"`
}

// RateLimitConfig limits API requests per client IP.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	Token         string `yaml:"token" env:"TOKEN"`
	Org           string `yaml:"org" env:"ORG"`
	Bucket        string `yaml:"bucket" env:"BUCKET"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output"`
}

// SceneConfig defines a cue-list scene.
type SceneConfig struct {
	Name string `yaml:"name"`

	// Autostart names a cue triggered when the scene starts.
	Autostart string      `yaml:"autostart"`
	Cues      []CueConfig `yaml:"cues"`
}

// CueConfig is a named list of steps.
type CueConfig struct {
	Name   string       `yaml:"name"`
	Steps  []StepConfig `yaml:"steps"`
	OnStop OnStopConfig `yaml:"on_stop"`
}

// StepConfig is one cue step. Exactly one field must be set.
type StepConfig struct {
	Light        *LightConfig  `yaml:"light,omitempty"`
	Play         *PlayConfig   `yaml:"play,omitempty"`
	Seek         *int64        `yaml:"seek,omitempty"`
	WaitPosition *int64        `yaml:"wait_position,omitempty"`
	Delay        time.Duration `yaml:"delay,omitempty"`
	Pause        bool          `yaml:"pause,omitempty"`
	StopDisplay  bool          `yaml:"stop_display,omitempty"`
}

// LightConfig is a light setting. Mode is "temperature" or "color".
type LightConfig struct {
	Mode       string `yaml:"mode"`
	Kelvin     int    `yaml:"kelvin"`
	Hue        int    `yaml:"hue"`
	Saturation int    `yaml:"saturation"`
	Brightness int    `yaml:"brightness"`
}

// PlayConfig starts media on the display.
type PlayConfig struct {
	Path  string `yaml:"path"`
	Title string `yaml:"title"`

	// Wait blocks the cue until playback ends.
	Wait bool `yaml:"wait"`

	// Resume continues from where this cue was last interrupted.
	Resume bool `yaml:"resume"`
}

// OnStopConfig controls what a cue undoes when its action settles.
type OnStopConfig struct {
	ResetLight  bool `yaml:"reset_light"`
	StopDisplay bool `yaml:"stop_display"`
}

// ScheduleConfig starts or stops a scene on a cron expression.
type ScheduleConfig struct {
	Scene  string `yaml:"scene"`
	Action string `yaml:"action"`
	Cron   string `yaml:"cron"`
}

// Schedule actions.
const (
	ScheduleStart = "start"
	ScheduleStop  = "stop"
)

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// Precedence, lowest first: defaults, YAML file, SHOWCTL_* variables.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Show: ShowConfig{
			Name:     "showctl",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/showctl.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "showctl-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Display: DisplayConfig{
			Player:      "projector",
			Placeholder: true,
			Process: ProcessConfig{
				RestartDelay:    time.Second,
				MaxRestartDelay: 30 * time.Second,
			},
		},
		Lighting: LightingConfig{
			Bulb: "stage",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:     30,
				Write:    30,
				Idle:     60,
				Shutdown: 10,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 720,
			},
			Operator: OperatorConfig{
				Username: "operator",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides overlays SHOWCTL_* variables. Unset variables leave
// the loaded value in place.
func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Display.Player == "" {
		errs = append(errs, "display.player is required")
	}
	if c.Display.Process.Enabled && c.Display.Process.Binary == "" {
		errs = append(errs, "display.process.binary is required when the process is enabled")
	}
	if c.Lighting.Bulb == "" {
		errs = append(errs, "lighting.bulb is required")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Anyone holding the secret can start and stop scenes.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set SHOWCTL_SECURITY_JWT_SECRET)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.Operator.PasswordHash == "" {
		errs = append(errs, "security.operator.password_hash is required")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	errs = append(errs, c.validateScenes()...)
	errs = append(errs, c.validateSchedules()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScenes() []string {
	var errs []string
	names := make(map[string]bool, len(c.Scenes))

	for i, s := range c.Scenes {
		where := fmt.Sprintf("scenes[%d]", i)
		if s.Name == "" {
			errs = append(errs, where+".name is required")
		} else if names[s.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate scene name %q", where, s.Name))
		}
		names[s.Name] = true

		cues := make(map[string]bool, len(s.Cues))
		for j, cue := range s.Cues {
			cueWhere := fmt.Sprintf("%s.cues[%d]", where, j)
			if cue.Name == "" {
				errs = append(errs, cueWhere+".name is required")
			} else if cues[cue.Name] {
				errs = append(errs, fmt.Sprintf("%s: duplicate cue name %q", cueWhere, cue.Name))
			}
			cues[cue.Name] = true

			for k, step := range cue.Steps {
				if n := step.kinds(); n != 1 {
					errs = append(errs, fmt.Sprintf("%s.steps[%d]: exactly one step kind must be set, got %d", cueWhere, k, n))
				}
			}
		}
		if s.Autostart != "" && !cues[s.Autostart] {
			errs = append(errs, fmt.Sprintf("%s.autostart: unknown cue %q", where, s.Autostart))
		}
	}
	return errs
}

func (c *Config) validateSchedules() []string {
	var errs []string
	for i, s := range c.Schedules {
		where := fmt.Sprintf("schedules[%d]", i)
		if s.Scene == "" {
			errs = append(errs, where+".scene is required")
		}
		if s.Action != ScheduleStart && s.Action != ScheduleStop {
			errs = append(errs, fmt.Sprintf("%s.action must be %q or %q", where, ScheduleStart, ScheduleStop))
		}
		if s.Cron == "" {
			errs = append(errs, where+".cron is required")
		}
	}
	return errs
}

// kinds counts how many step kinds are set.
func (s StepConfig) kinds() int {
	n := 0
	for _, set := range []bool{
		s.Light != nil,
		s.Play != nil,
		s.Seek != nil,
		s.WaitPosition != nil,
		s.Delay > 0,
		s.Pause,
		s.StopDisplay,
	} {
		if set {
			n++
		}
	}
	return n
}

// ReadTimeout returns the API read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// WriteTimeout returns the API write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// IdleTimeout returns the API idle timeout.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ShutdownTimeout bounds the wait for running actions and open
// connections at shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Shutdown) * time.Second
}

package lighting

import (
	"encoding/json"
	"fmt"
)

// Range limits of the supported bulb (TP-Link Tapo L530 class).
const (
	MinKelvin     = 2500
	MaxKelvin     = 6500
	MaxHue        = 360
	MaxSaturation = 100
	MinBrightness = 1
	MaxBrightness = 100
)

// Wire modes for the "mode" field of command parameters and state reports.
const (
	ModeTemperature = "temperature"
	ModeColor       = "color"
)

// State is a light setting. It is implemented only by Temperature and Color.
type State interface {
	// Mode returns the wire mode name.
	Mode() string

	// Validate checks the setting against the bulb's range limits.
	Validate() error

	isState()
}

// Temperature is white light at a colour temperature.
type Temperature struct {
	Kelvin     int `json:"kelvin"`
	Brightness int `json:"brightness"`
}

// Color is a hue/saturation colour.
type Color struct {
	Hue        int `json:"hue"`
	Saturation int `json:"saturation"`
	Brightness int `json:"brightness"`
}

// Default is the neutral house light restored when a cue releases the stage.
var Default State = Temperature{Kelvin: 3620, Brightness: 100}

func (Temperature) isState() {}
func (Color) isState()       {}

// Mode implements State.
func (Temperature) Mode() string { return ModeTemperature }

// Mode implements State.
func (Color) Mode() string { return ModeColor }

// Validate implements State.
func (t Temperature) Validate() error {
	if t.Kelvin < MinKelvin || t.Kelvin > MaxKelvin {
		return fmt.Errorf("%w: kelvin %d outside %d-%d", ErrInvalidState, t.Kelvin, MinKelvin, MaxKelvin)
	}
	return validateBrightness(t.Brightness)
}

// Validate implements State.
func (c Color) Validate() error {
	if c.Hue < 0 || c.Hue > MaxHue {
		return fmt.Errorf("%w: hue %d outside 0-%d", ErrInvalidState, c.Hue, MaxHue)
	}
	if c.Saturation < 0 || c.Saturation > MaxSaturation {
		return fmt.Errorf("%w: saturation %d outside 0-%d", ErrInvalidState, c.Saturation, MaxSaturation)
	}
	return validateBrightness(c.Brightness)
}

func validateBrightness(b int) error {
	if b < MinBrightness || b > MaxBrightness {
		return fmt.Errorf("%w: brightness %d outside %d-%d", ErrInvalidState, b, MinBrightness, MaxBrightness)
	}
	return nil
}

// wireState is the flat JSON shape used on the bus for both variants.
type wireState struct {
	Mode       string `json:"mode"`
	Kelvin     int    `json:"kelvin,omitempty"`
	Hue        int    `json:"hue,omitempty"`
	Saturation int    `json:"saturation,omitempty"`
	Brightness int    `json:"brightness"`
}

// toWire flattens a State for publishing.
func toWire(s State) wireState {
	switch v := s.(type) {
	case Temperature:
		return wireState{Mode: ModeTemperature, Kelvin: v.Kelvin, Brightness: v.Brightness}
	case Color:
		return wireState{Mode: ModeColor, Hue: v.Hue, Saturation: v.Saturation, Brightness: v.Brightness}
	default:
		return wireState{}
	}
}

// fromWire rebuilds a State from a bridge report.
func fromWire(w wireState) (State, error) {
	switch w.Mode {
	case ModeTemperature:
		return Temperature{Kelvin: w.Kelvin, Brightness: w.Brightness}, nil
	case ModeColor:
		return Color{Hue: w.Hue, Saturation: w.Saturation, Brightness: w.Brightness}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, w.Mode)
	}
}

// ParseState decodes a flat JSON light state such as
// {"mode":"color","hue":180,"saturation":100,"brightness":80}.
func ParseState(data []byte) (State, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding light state: %w", err)
	}
	return fromWire(w)
}

// MarshalState encodes a State in the flat wire form accepted by ParseState.
func MarshalState(s State) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	return json.Marshal(toWire(s))
}

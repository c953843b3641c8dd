package cuelist

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/showctl/internal/display"
	"github.com/nerrad567/showctl/internal/infrastructure/config"
	"github.com/nerrad567/showctl/internal/lighting"
)

type stepKind int

const (
	stepLight stepKind = iota + 1
	stepPlay
	stepSeek
	stepWaitPosition
	stepDelay
	stepPause
	stepStopDisplay
)

var stepKindNames = map[stepKind]string{
	stepLight:        "light",
	stepPlay:         "play",
	stepSeek:         "seek",
	stepWaitPosition: "wait_position",
	stepDelay:        "delay",
	stepPause:        "pause",
	stepStopDisplay:  "stop_display",
}

func (k stepKind) String() string {
	return stepKindNames[k]
}

type step struct {
	kind   stepKind
	light  lighting.State
	media  display.Media
	wait   bool
	resume bool
	ms     int64
	delay  time.Duration
}

type cue struct {
	name        string
	steps       []step
	resetLight  bool
	stopDisplay bool
}

// program is a compiled scene configuration.
type program struct {
	name      string
	autostart string
	order     []string
	cues      map[string]*cue
}

func compile(cfg config.SceneConfig) (*program, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: scene name is required", ErrInvalidCue)
	}

	p := &program{
		name:      cfg.Name,
		autostart: cfg.Autostart,
		cues:      make(map[string]*cue, len(cfg.Cues)),
	}

	var errs []error
	for i, cc := range cfg.Cues {
		if cc.Name == "" {
			errs = append(errs, fmt.Errorf("%w: scene %q cue %d has no name", ErrInvalidCue, cfg.Name, i))
			continue
		}
		if _, dup := p.cues[cc.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: scene %q has duplicate cue %q", ErrInvalidCue, cfg.Name, cc.Name))
			continue
		}

		c := &cue{
			name:        cc.Name,
			resetLight:  cc.OnStop.ResetLight,
			stopDisplay: cc.OnStop.StopDisplay,
		}
		for j, sc := range cc.Steps {
			st, err := compileStep(sc)
			if err != nil {
				errs = append(errs, fmt.Errorf("scene %q cue %q step %d: %w", cfg.Name, cc.Name, j, err))
				continue
			}
			c.steps = append(c.steps, st)
		}

		p.cues[c.name] = c
		p.order = append(p.order, c.name)
	}

	if p.autostart != "" {
		if _, ok := p.cues[p.autostart]; !ok {
			errs = append(errs, fmt.Errorf("%w: scene %q autostart cue %q does not exist", ErrInvalidCue, cfg.Name, p.autostart))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

func compileStep(sc config.StepConfig) (step, error) {
	var (
		st    step
		kinds int
	)
	if sc.Light != nil {
		kinds++
		state, err := LightState(*sc.Light)
		if err != nil {
			return step{}, err
		}
		st = step{kind: stepLight, light: state}
	}
	if sc.Play != nil {
		kinds++
		if sc.Play.Path == "" {
			return step{}, fmt.Errorf("%w: play needs a path", ErrInvalidCue)
		}
		st = step{
			kind:   stepPlay,
			media:  display.Media{Path: sc.Play.Path, Title: sc.Play.Title},
			wait:   sc.Play.Wait,
			resume: sc.Play.Resume,
		}
	}
	if sc.Seek != nil {
		kinds++
		st = step{kind: stepSeek, ms: *sc.Seek}
	}
	if sc.WaitPosition != nil {
		kinds++
		st = step{kind: stepWaitPosition, ms: *sc.WaitPosition}
	}
	if sc.Delay > 0 {
		kinds++
		st = step{kind: stepDelay, delay: sc.Delay}
	}
	if sc.Pause {
		kinds++
		st = step{kind: stepPause}
	}
	if sc.StopDisplay {
		kinds++
		st = step{kind: stepStopDisplay}
	}

	if kinds != 1 {
		return step{}, fmt.Errorf("%w: a step sets exactly one action, got %d", ErrInvalidCue, kinds)
	}
	if (st.kind == stepSeek || st.kind == stepWaitPosition) && st.ms < 0 {
		return step{}, fmt.Errorf("%w: %s position %d is negative", ErrInvalidCue, st.kind, st.ms)
	}
	return st, nil
}

// LightState converts a configured light setting into a lighting.State and
// validates its ranges.
func LightState(lc config.LightConfig) (lighting.State, error) {
	var state lighting.State
	switch lc.Mode {
	case lighting.ModeTemperature:
		state = lighting.Temperature{Kelvin: lc.Kelvin, Brightness: lc.Brightness}
	case lighting.ModeColor:
		state = lighting.Color{Hue: lc.Hue, Saturation: lc.Saturation, Brightness: lc.Brightness}
	default:
		return nil, fmt.Errorf("%w: light mode %q", ErrInvalidCue, lc.Mode)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCue, err)
	}
	return state, nil
}

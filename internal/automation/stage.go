package automation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/showctl/internal/display"
	"github.com/nerrad567/showctl/internal/lighting"
)

// Display is the media output a Stage grants access to.
// Implemented by *display.Client.
type Display interface {
	Play(ctx context.Context, media display.Media) error
	Start(ctx context.Context, media display.Media) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset()
	SetPosition(ctx context.Context, ms int64) error
	Position() int64
	WaitUntilPosition(ctx context.Context, ms int64) error
}

// Lighting is the stage light a Stage grants access to.
// Implemented by *lighting.Client.
type Lighting interface {
	Set(ctx context.Context, state lighting.State) error
}

// Stage is the capability an action uses to reach the display and the
// light. One Stage is minted per executed action and revoked when that
// action settles; every access after revocation fails with
// ErrInvalidCapability.
//
// The generation number identifies the action window the Stage belongs to
// and appears in errors to make a leaked Stage easy to trace.
type Stage struct {
	generation uint64
	display    Display
	lighting   Lighting
	revoked    atomic.Bool
}

func newStage(generation uint64, d Display, l Lighting) *Stage {
	return &Stage{generation: generation, display: d, lighting: l}
}

// Generation returns the stage's generation number.
func (s *Stage) Generation() uint64 {
	return s.generation
}

// Valid reports whether the stage can still be used.
func (s *Stage) Valid() bool {
	return s != nil && !s.revoked.Load()
}

// Check returns nil while the stage is valid and ErrInvalidCapability after.
func (s *Stage) Check() error {
	if s == nil {
		return fmt.Errorf("%w: no stage bound", ErrInvalidCapability)
	}
	if s.revoked.Load() {
		return fmt.Errorf("%w: stage generation %d used outside its action", ErrInvalidCapability, s.generation)
	}
	return nil
}

// Display returns the guarded display handle.
func (s *Stage) Display() StageDisplay {
	return StageDisplay{stage: s}
}

// Lighting returns the guarded lighting handle.
func (s *Stage) Lighting() StageLighting {
	return StageLighting{stage: s}
}

func (s *Stage) revoke() {
	if s != nil {
		s.revoked.Store(true)
	}
}

func (s *Stage) displayBackend() (Display, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if s.display == nil {
		return nil, fmt.Errorf("%w: display", ErrDeviceUnavailable)
	}
	return s.display, nil
}

func (s *Stage) lightingBackend() (Lighting, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if s.lighting == nil {
		return nil, fmt.Errorf("%w: lighting", ErrDeviceUnavailable)
	}
	return s.lighting, nil
}

// StageDisplay is the display as seen through a Stage. Every call checks
// the stage first.
type StageDisplay struct {
	stage *Stage
}

// Play starts media and blocks until it ends or ctx is cancelled.
func (d StageDisplay) Play(ctx context.Context, media display.Media) error {
	b, err := d.stage.displayBackend()
	if err != nil {
		return err
	}
	return b.Play(ctx, media)
}

// Start begins media without waiting for it to end.
func (d StageDisplay) Start(ctx context.Context, media display.Media) error {
	b, err := d.stage.displayBackend()
	if err != nil {
		return err
	}
	return b.Start(ctx, media)
}

// Pause toggles pause.
func (d StageDisplay) Pause(ctx context.Context) error {
	b, err := d.stage.displayBackend()
	if err != nil {
		return err
	}
	return b.Pause(ctx)
}

// Stop ends playback and shows the placeholder.
func (d StageDisplay) Stop(ctx context.Context) error {
	b, err := d.stage.displayBackend()
	if err != nil {
		return err
	}
	return b.Stop(ctx)
}

// Reset releases all pending position waits.
func (d StageDisplay) Reset() error {
	b, err := d.stage.displayBackend()
	if err != nil {
		return err
	}
	b.Reset()
	return nil
}

// SetPosition seeks the current media.
func (d StageDisplay) SetPosition(ctx context.Context, ms int64) error {
	b, err := d.stage.displayBackend()
	if err != nil {
		return err
	}
	return b.SetPosition(ctx, ms)
}

// Position returns the current playback position in milliseconds.
func (d StageDisplay) Position() (int64, error) {
	b, err := d.stage.displayBackend()
	if err != nil {
		return 0, err
	}
	return b.Position(), nil
}

// WaitUntilPosition blocks until playback reaches ms or ctx is cancelled.
func (d StageDisplay) WaitUntilPosition(ctx context.Context, ms int64) error {
	b, err := d.stage.displayBackend()
	if err != nil {
		return err
	}
	return b.WaitUntilPosition(ctx, ms)
}

// StageLighting is the light as seen through a Stage.
type StageLighting struct {
	stage *Stage
}

// Set applies a light state.
func (l StageLighting) Set(ctx context.Context, state lighting.State) error {
	b, err := l.stage.lightingBackend()
	if err != nil {
		return err
	}
	return b.Set(ctx, state)
}

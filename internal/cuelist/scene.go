package cuelist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/showctl/internal/automation"
	"github.com/nerrad567/showctl/internal/infrastructure/config"
	"github.com/nerrad567/showctl/internal/lighting"
)

// Logger is the logging interface used by cue-list scenes.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// resumePoint is where a resumable play step was interrupted.
type resumePoint struct {
	path string
	ms   int64
}

// Scene is an automation.Scene driven by a configured cue list.
type Scene struct {
	sc     *automation.SceneContext
	prog   *program
	logger Logger

	mu     sync.Mutex
	resume map[string]resumePoint
}

// NewFactory compiles cfg and returns a factory for RegisterScene. All
// configuration problems are reported here rather than at trigger time.
func NewFactory(cfg config.SceneConfig, logger Logger) (automation.SceneFactory, error) {
	prog, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return func(sc *automation.SceneContext) automation.Scene {
		return &Scene{
			sc:     sc,
			prog:   prog,
			logger: logger,
			resume: make(map[string]resumePoint),
		}
	}, nil
}

// RegisterAll registers one scene per configuration entry and returns the
// assigned ids keyed by scene name. Nothing is registered if any entry
// fails to compile.
func RegisterAll(m *automation.Manager, cfgs []config.SceneConfig, logger Logger) (map[string]int, error) {
	factories := make([]automation.SceneFactory, 0, len(cfgs))
	for _, cfg := range cfgs {
		f, err := NewFactory(cfg, logger)
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}

	ids := make(map[string]int, len(cfgs))
	for i, f := range factories {
		id, err := m.RegisterScene(f)
		if err != nil {
			return ids, fmt.Errorf("registering scene %q: %w", cfgs[i].Name, err)
		}
		ids[cfgs[i].Name] = id
	}
	return ids, nil
}

// Name returns the configured scene name.
func (s *Scene) Name() string {
	return s.prog.name
}

// OnStart triggers the autostart cue, if any.
func (s *Scene) OnStart() {
	if s.prog.autostart == "" {
		return
	}
	if _, err := s.Trigger(s.prog.autostart); err != nil {
		s.logger.Warn("autostart cue failed", "scene", s.prog.name, "cue", s.prog.autostart, "error", err)
	}
}

// OnStop forgets every remembered resume position.
func (s *Scene) OnStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.resume)
}

// Cues returns the cue names in configuration order.
func (s *Scene) Cues() []string {
	return append([]string(nil), s.prog.order...)
}

// Trigger submits the named cue as this scene's next action.
func (s *Scene) Trigger(name string) (*automation.ActionTask, error) {
	c, ok := s.prog.cues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in scene %q", ErrUnknownCue, name, s.prog.name)
	}

	r := &cueRun{scene: s, cue: c}
	return s.sc.Run(r.execute,
		automation.WithName(c.name),
		automation.WithOnStop(r.settle),
	)
}

func (s *Scene) takeResume(cueName, path string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.resume[cueName]
	if !ok || p.path != path {
		return 0, false
	}
	delete(s.resume, cueName)
	return p.ms, true
}

func (s *Scene) saveResume(cueName string, p resumePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume[cueName] = p
}

func (s *Scene) dropResume(cueName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resume, cueName)
}

// cueRun is the state of one triggered cue.
type cueRun struct {
	scene *Scene
	cue   *cue

	mu sync.Mutex
	// playing is the media of a resumable play step that has not ended.
	playing string
}

func (r *cueRun) setPlaying(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = path
}

func (r *cueRun) playingPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

func (r *cueRun) execute(ctx context.Context, stage *automation.Stage) error {
	for i, st := range r.cue.steps {
		if err := r.runStep(ctx, stage, st); err != nil {
			return fmt.Errorf("cue %q step %d (%s): %w", r.cue.name, i, st.kind, err)
		}
	}
	return nil
}

func (r *cueRun) runStep(ctx context.Context, stage *automation.Stage, st step) error {
	d := stage.Display()

	switch st.kind {
	case stepLight:
		return stage.Lighting().Set(ctx, st.light)

	case stepPlay:
		media := st.media
		if st.resume {
			if ms, ok := r.scene.takeResume(r.cue.name, media.Path); ok {
				media.StartMS = ms
			}
			r.setPlaying(media.Path)
		}
		if !st.wait {
			return d.Start(ctx, media)
		}
		if err := d.Play(ctx, media); err != nil {
			return err
		}
		if st.resume {
			r.setPlaying("")
		}
		return nil

	case stepSeek:
		return d.SetPosition(ctx, st.ms)

	case stepWaitPosition:
		return d.WaitUntilPosition(ctx, st.ms)

	case stepDelay:
		timer := time.NewTimer(st.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case stepPause:
		return d.Pause(ctx)

	case stepStopDisplay:
		return d.Stop(ctx)
	}
	return fmt.Errorf("%w: unknown step kind %d", ErrInvalidCue, st.kind)
}

// settle runs the cue's on_stop block. The stage is still valid here.
func (r *cueRun) settle(ctx context.Context, reason automation.StopReason, stage *automation.Stage) {
	s := r.scene

	if reason == automation.ReasonReturn {
		s.dropResume(r.cue.name)
	} else if path := r.playingPath(); path != "" {
		if ms, err := stage.Display().Position(); err == nil {
			s.saveResume(r.cue.name, resumePoint{path: path, ms: ms})
			s.logger.Debug("cue resume point saved", "scene", s.prog.name, "cue", r.cue.name, "position_ms", ms)
		}
	}

	if r.cue.resetLight {
		if err := stage.Lighting().Set(ctx, lighting.Default); err != nil {
			s.logger.Warn("resetting light failed", "scene", s.prog.name, "cue", r.cue.name, "error", err)
		}
	}

	// A local intercept hands the display straight to the scene's next cue.
	if r.cue.stopDisplay && reason != automation.ReasonLocalIntercept {
		if err := stage.Display().Stop(ctx); err != nil {
			s.logger.Warn("stopping display failed", "scene", s.prog.name, "cue", r.cue.name, "error", err)
		}
	}
}

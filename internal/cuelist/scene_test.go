package cuelist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/showctl/internal/automation"
	"github.com/nerrad567/showctl/internal/display"
	"github.com/nerrad567/showctl/internal/infrastructure/config"
	"github.com/nerrad567/showctl/internal/lighting"
)

// ─── Mock Dependencies ──────────────────────────────────────────────

// mockDisplay records calls. Play blocks until ctx is cancelled.
type mockDisplay struct {
	mu       sync.Mutex
	calls    []string
	media    []display.Media
	position int64
}

func (d *mockDisplay) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *mockDisplay) Play(ctx context.Context, media display.Media) error {
	d.mu.Lock()
	d.calls = append(d.calls, "play")
	d.media = append(d.media, media)
	d.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (d *mockDisplay) Start(_ context.Context, media display.Media) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "start")
	d.media = append(d.media, media)
	return nil
}

func (d *mockDisplay) Pause(context.Context) error { d.record("pause"); return nil }
func (d *mockDisplay) Stop(context.Context) error  { d.record("stop"); return nil }
func (d *mockDisplay) Reset()                      { d.record("reset") }

func (d *mockDisplay) SetPosition(_ context.Context, ms int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "seek")
	d.position = ms
	return nil
}

func (d *mockDisplay) Position() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *mockDisplay) setPosition(ms int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = ms
}

func (d *mockDisplay) WaitUntilPosition(ctx context.Context, _ int64) error {
	d.record("wait_position")
	<-ctx.Done()
	return ctx.Err()
}

func (d *mockDisplay) getCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *mockDisplay) getMedia() []display.Media {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]display.Media(nil), d.media...)
}

type mockLighting struct {
	mu     sync.Mutex
	states []lighting.State
}

func (l *mockLighting) Set(_ context.Context, state lighting.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
	return nil
}

func (l *mockLighting) getStates() []lighting.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]lighting.State(nil), l.states...)
}

// ─── Helpers ────────────────────────────────────────────────────────

func ptr(v int64) *int64 { return &v }

func warmLight() *config.LightConfig {
	return &config.LightConfig{Mode: "temperature", Kelvin: 2700, Brightness: 60}
}

type fixture struct {
	manager  *automation.Manager
	display  *mockDisplay
	lighting *mockLighting
	id       int
	scene    *Scene
}

func setup(t *testing.T, cfg config.SceneConfig) *fixture {
	t.Helper()
	d := &mockDisplay{}
	l := &mockLighting{}
	m := automation.NewManager(d, l)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})

	ids, err := RegisterAll(m, []config.SceneConfig{cfg}, nil)
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	id := ids[cfg.Name]

	sc, err := m.Scene(id)
	if err != nil {
		t.Fatalf("Scene: %v", err)
	}
	scene, ok := sc.Scene().(*Scene)
	if !ok {
		t.Fatalf("registered scene is %T, want *Scene", sc.Scene())
	}
	return &fixture{manager: m, display: d, lighting: l, id: id, scene: scene}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.manager.StartScene(f.id); err != nil {
		t.Fatalf("StartScene: %v", err)
	}
}

func (f *fixture) trigger(t *testing.T, cue string) *automation.ActionTask {
	t.Helper()
	task, err := f.scene.Trigger(cue)
	if err != nil {
		t.Fatalf("Trigger(%q): %v", cue, err)
	}
	return task
}

func join(t *testing.T, task *automation.ActionTask) automation.StopReason {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := task.Join(ctx); err != nil {
		t.Fatalf("Join: %v", err)
	}
	reason, _ := task.StopReason()
	return reason
}

func waitForCalls(t *testing.T, d *mockDisplay, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if calls := d.getCalls(); len(calls) >= n {
			return calls
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("display calls = %v, want at least %d", d.getCalls(), n)
	return nil
}

func waitForState(t *testing.T, m *automation.Manager, id int, want automation.SceneState) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		d, err := m.Describe(id)
		if err == nil && d.State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	d, _ := m.Describe(id)
	t.Fatalf("scene state = %s, want %s", d.State, want)
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

// ─── Compile Tests ──────────────────────────────────────────────────

func TestNewFactory_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SceneConfig
	}{
		{"missing name", config.SceneConfig{}},
		{"unnamed cue", config.SceneConfig{Name: "s", Cues: []config.CueConfig{{}}}},
		{"duplicate cue", config.SceneConfig{Name: "s", Cues: []config.CueConfig{{Name: "a"}, {Name: "a"}}}},
		{"missing autostart", config.SceneConfig{Name: "s", Autostart: "nope", Cues: []config.CueConfig{{Name: "a"}}}},
		{"empty step", config.SceneConfig{Name: "s", Cues: []config.CueConfig{{Name: "a", Steps: []config.StepConfig{{}}}}}},
		{"two actions in one step", config.SceneConfig{Name: "s", Cues: []config.CueConfig{{Name: "a", Steps: []config.StepConfig{{Pause: true, StopDisplay: true}}}}}},
		{"play without path", config.SceneConfig{Name: "s", Cues: []config.CueConfig{{Name: "a", Steps: []config.StepConfig{{Play: &config.PlayConfig{}}}}}}},
		{"negative seek", config.SceneConfig{Name: "s", Cues: []config.CueConfig{{Name: "a", Steps: []config.StepConfig{{Seek: ptr(-1)}}}}}},
		{"light out of range", config.SceneConfig{Name: "s", Cues: []config.CueConfig{{Name: "a", Steps: []config.StepConfig{{Light: &config.LightConfig{Mode: "temperature", Kelvin: 9000, Brightness: 50}}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFactory(tt.cfg, nil); !errors.Is(err, ErrInvalidCue) {
				t.Errorf("NewFactory() error = %v, want ErrInvalidCue", err)
			}
		})
	}
}

func TestRegisterAll_NothingRegisteredOnError(t *testing.T) {
	m := automation.NewManager(nil, nil)
	cfgs := []config.SceneConfig{
		{Name: "good", Cues: []config.CueConfig{{Name: "a"}}},
		{Name: "bad", Autostart: "missing"},
	}

	if _, err := RegisterAll(m, cfgs, nil); err == nil {
		t.Fatal("RegisterAll() error = nil, want compile error")
	}
	if n := len(m.Scenes()); n != 0 {
		t.Errorf("registered scenes = %d, want 0", n)
	}
}

func TestLightState(t *testing.T) {
	temp, err := LightState(config.LightConfig{Mode: "temperature", Kelvin: 3000, Brightness: 80})
	if err != nil {
		t.Fatalf("LightState(temperature): %v", err)
	}
	if temp != (lighting.Temperature{Kelvin: 3000, Brightness: 80}) {
		t.Errorf("temperature = %+v", temp)
	}

	col, err := LightState(config.LightConfig{Mode: "color", Hue: 240, Saturation: 90, Brightness: 40})
	if err != nil {
		t.Fatalf("LightState(color): %v", err)
	}
	if col != (lighting.Color{Hue: 240, Saturation: 90, Brightness: 40}) {
		t.Errorf("color = %+v", col)
	}

	if _, err := LightState(config.LightConfig{Mode: "disco"}); !errors.Is(err, ErrInvalidCue) {
		t.Errorf("unknown mode error = %v, want ErrInvalidCue", err)
	}
}

// ─── Scene Tests ────────────────────────────────────────────────────

func TestScene_CuesInOrder(t *testing.T) {
	f := setup(t, config.SceneConfig{
		Name: "show",
		Cues: []config.CueConfig{{Name: "open"}, {Name: "middle"}, {Name: "close"}},
	})

	got := f.scene.Cues()
	if len(got) != 3 || got[0] != "open" || got[1] != "middle" || got[2] != "close" {
		t.Errorf("Cues() = %v", got)
	}
	if f.scene.Name() != "show" {
		t.Errorf("Name() = %q, want show", f.scene.Name())
	}
}

func TestScene_TriggerRunsStepsInOrder(t *testing.T) {
	f := setup(t, config.SceneConfig{
		Name: "show",
		Cues: []config.CueConfig{{
			Name: "open",
			Steps: []config.StepConfig{
				{Light: warmLight()},
				{Play: &config.PlayConfig{Path: "/media/intro.mp4"}},
				{Seek: ptr(1500)},
				{Delay: time.Millisecond},
				{Pause: true},
				{StopDisplay: true},
			},
		}},
	})
	f.start(t)

	task := f.trigger(t, "open")
	if reason := join(t, task); reason != automation.ReasonReturn {
		t.Errorf("reason = %s, want return", reason)
	}
	if err := task.Err(); err != nil {
		t.Errorf("task error = %v", err)
	}

	assertCalls(t, f.display.getCalls(), "start", "seek", "pause", "stop")
	states := f.lighting.getStates()
	if len(states) != 1 || states[0] != (lighting.Temperature{Kelvin: 2700, Brightness: 60}) {
		t.Errorf("light states = %v", states)
	}
	waitForState(t, f.manager, f.id, automation.SceneIdle)
}

func TestScene_TriggerUnknownCue(t *testing.T) {
	f := setup(t, config.SceneConfig{Name: "show", Cues: []config.CueConfig{{Name: "open"}}})
	f.start(t)

	if _, err := f.scene.Trigger("encore"); !errors.Is(err, ErrUnknownCue) {
		t.Errorf("Trigger() error = %v, want ErrUnknownCue", err)
	}
}

func TestScene_TriggerWhileStopped(t *testing.T) {
	f := setup(t, config.SceneConfig{Name: "show", Cues: []config.CueConfig{{Name: "open"}}})

	if _, err := f.scene.Trigger("open"); !errors.Is(err, automation.ErrIllegalOperation) {
		t.Errorf("Trigger() error = %v, want ErrIllegalOperation", err)
	}
}

func TestScene_Autostart(t *testing.T) {
	f := setup(t, config.SceneConfig{
		Name:      "lobby",
		Autostart: "loop",
		Cues: []config.CueConfig{{
			Name:  "loop",
			Steps: []config.StepConfig{{Play: &config.PlayConfig{Path: "/media/lobby.mp4", Wait: true}}},
		}},
	})
	f.start(t)

	assertCalls(t, waitForCalls(t, f.display, 1), "play")
	waitForState(t, f.manager, f.id, automation.ScenePlaying)
}

func TestScene_LocalInterceptKeepsDisplay(t *testing.T) {
	f := setup(t, config.SceneConfig{
		Name: "show",
		Cues: []config.CueConfig{
			{
				Name:   "hold",
				Steps:  []config.StepConfig{{Delay: time.Hour}},
				OnStop: config.OnStopConfig{ResetLight: true, StopDisplay: true},
			},
			{Name: "next"},
		},
	})
	f.start(t)

	first := f.trigger(t, "hold")
	f.trigger(t, "next")

	if reason := join(t, first); reason != automation.ReasonLocalIntercept {
		t.Fatalf("reason = %s, want local_intercept", reason)
	}
	if err := first.Err(); err != nil {
		t.Errorf("interrupted cue error = %v, want nil", err)
	}

	for _, call := range f.display.getCalls() {
		if call == "stop" {
			t.Error("display stopped on a local intercept")
		}
	}
	states := f.lighting.getStates()
	if len(states) != 1 || states[0] != lighting.Default {
		t.Errorf("light states = %v, want default light once", states)
	}
}

func TestScene_StopRunsOnStopBlock(t *testing.T) {
	f := setup(t, config.SceneConfig{
		Name: "show",
		Cues: []config.CueConfig{{
			Name:   "wait",
			Steps:  []config.StepConfig{{WaitPosition: ptr(60000)}},
			OnStop: config.OnStopConfig{ResetLight: true, StopDisplay: true},
		}},
	})
	f.start(t)

	task := f.trigger(t, "wait")
	waitForCalls(t, f.display, 1)

	if err := f.manager.StopScene(f.id); err != nil {
		t.Fatalf("StopScene: %v", err)
	}
	if reason := join(t, task); reason != automation.ReasonSceneStop {
		t.Fatalf("reason = %s, want scene_stop", reason)
	}

	assertCalls(t, f.display.getCalls(), "wait_position", "stop")
	if states := f.lighting.getStates(); len(states) != 1 || states[0] != lighting.Default {
		t.Errorf("light states = %v, want default light", states)
	}
	waitForState(t, f.manager, f.id, automation.SceneStopped)
}

func resumeScene() config.SceneConfig {
	return config.SceneConfig{
		Name: "film",
		Cues: []config.CueConfig{
			{
				Name:  "feature",
				Steps: []config.StepConfig{{Play: &config.PlayConfig{Path: "/media/feature.mp4", Wait: true, Resume: true}}},
			},
			{Name: "intermission"},
		},
	}
}

func TestScene_ResumeFromInterruptedPosition(t *testing.T) {
	f := setup(t, resumeScene())
	f.start(t)

	first := f.trigger(t, "feature")
	waitForCalls(t, f.display, 1)
	f.display.setPosition(4200)

	f.trigger(t, "intermission")
	join(t, first)

	second := f.trigger(t, "feature")
	waitForCalls(t, f.display, 2)

	media := f.display.getMedia()
	if media[0].StartMS != 0 {
		t.Errorf("first play StartMS = %d, want 0", media[0].StartMS)
	}
	if media[1].StartMS != 4200 {
		t.Errorf("resumed play StartMS = %d, want 4200", media[1].StartMS)
	}

	f.trigger(t, "intermission")
	join(t, second)
}

func TestScene_StopForgetsResumePoints(t *testing.T) {
	f := setup(t, resumeScene())
	f.start(t)

	task := f.trigger(t, "feature")
	waitForCalls(t, f.display, 1)
	f.display.setPosition(9000)

	if err := f.manager.StopScene(f.id); err != nil {
		t.Fatalf("StopScene: %v", err)
	}
	join(t, task)
	waitForState(t, f.manager, f.id, automation.SceneStopped)

	f.start(t)
	f.trigger(t, "feature")
	waitForCalls(t, f.display, 2)

	if got := f.display.getMedia()[1].StartMS; got != 0 {
		t.Errorf("StartMS after restart = %d, want 0", got)
	}
}

package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/showctl/internal/display"
	"github.com/nerrad567/showctl/internal/lighting"
)

func defaultLight() lighting.State {
	return lighting.Default
}

func TestStage_ForwardsWhileValid(t *testing.T) {
	d := &mockDisplay{}
	l := &mockLighting{}
	stage := newStage(1, d, l)
	ctx := context.Background()

	if err := stage.Display().Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := stage.Display().SetPosition(ctx, 1500); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	pos, err := stage.Display().Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != 1500 {
		t.Errorf("Position() = %d, want 1500", pos)
	}
	if err := stage.Lighting().Set(ctx, lighting.Color{Hue: 200, Saturation: 80, Brightness: 60}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	calls := d.getCalls()
	if len(calls) != 2 || calls[0] != "pause" || calls[1] != "seek" {
		t.Errorf("display calls = %v", calls)
	}
	if len(l.getStates()) != 1 {
		t.Errorf("light states = %d, want 1", len(l.getStates()))
	}
}

func TestStage_RevokedRejectsEveryAccess(t *testing.T) {
	d := &mockDisplay{}
	l := &mockLighting{}
	stage := newStage(7, d, l)
	stage.revoke()
	ctx := context.Background()

	_, posErr := stage.Display().Position()
	resetErr := stage.Display().Reset()

	checks := map[string]error{
		"Check":             stage.Check(),
		"Play":              stage.Display().Play(ctx, display.Media{Path: "intro.mp4"}),
		"Start":             stage.Display().Start(ctx, display.Media{Path: "intro.mp4"}),
		"Pause":             stage.Display().Pause(ctx),
		"Stop":              stage.Display().Stop(ctx),
		"Reset":             resetErr,
		"SetPosition":       stage.Display().SetPosition(ctx, 10),
		"Position":          posErr,
		"WaitUntilPosition": stage.Display().WaitUntilPosition(ctx, 10),
		"Set":               stage.Lighting().Set(ctx, defaultLight()),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrInvalidCapability) {
			t.Errorf("%s after revoke: error = %v, want ErrInvalidCapability", name, err)
		}
	}

	if len(d.getCalls()) != 0 || len(l.getStates()) != 0 {
		t.Error("revoked stage reached a device")
	}
	if stage.Valid() {
		t.Error("Valid() = true after revoke")
	}
}

func TestStage_MissingDevices(t *testing.T) {
	stage := newStage(1, nil, nil)
	ctx := context.Background()

	if err := stage.Display().Stop(ctx); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Stop error = %v, want ErrDeviceUnavailable", err)
	}
	if err := stage.Lighting().Set(ctx, defaultLight()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Set error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestStage_NilStage(t *testing.T) {
	var stage *Stage

	if stage.Valid() {
		t.Error("nil stage reported valid")
	}
	if err := stage.Check(); !errors.Is(err, ErrInvalidCapability) {
		t.Errorf("Check() error = %v, want ErrInvalidCapability", err)
	}
}

func TestManager_StageRevokedAfterSettlement(t *testing.T) {
	m, _, _ := setupManager(t)
	a := startScene(t, m, "Round One")

	var leaked *Stage
	task, err := a.sc.Run(func(_ context.Context, stage *Stage) error {
		leaked = stage
		if a.sc.Stage() != stage {
			t.Error("scene context does not expose the running stage")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	joinTask(t, task)

	if err := leaked.Lighting().Set(context.Background(), defaultLight()); !errors.Is(err, ErrInvalidCapability) {
		t.Errorf("leaked stage Set error = %v, want ErrInvalidCapability", err)
	}
	if a.sc.Stage() != nil {
		t.Error("scene context still holds a stage after settlement")
	}
}

func TestManager_EachActionGetsFreshStage(t *testing.T) {
	m, _, _ := setupManager(t)
	a := startScene(t, m, "Round One")

	stages := make([]*Stage, 0, 2)
	for i := 0; i < 2; i++ {
		task, err := a.sc.Run(func(_ context.Context, stage *Stage) error {
			stages = append(stages, stage)
			return nil
		})
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		joinTask(t, task)
	}

	if stages[0] == stages[1] {
		t.Fatal("stage reused across actions")
	}
	if stages[1].Generation() <= stages[0].Generation() {
		t.Errorf("generations = %d, %d; want increasing", stages[0].Generation(), stages[1].Generation())
	}
}

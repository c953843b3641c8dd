package automation

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Scene is a unit of show logic. OnStart and OnStop are called by the
// Manager; a scene submits actions through the SceneContext it was built
// with.
type Scene interface {
	Name() string
	OnStart()
	OnStop()
}

// SceneFactory builds a scene bound to its context. Called once, during
// RegisterScene.
type SceneFactory func(sc *SceneContext) Scene

// SceneContext is the runtime record of one registered scene.
type SceneContext struct {
	id      int
	manager *Manager
	scene   Scene

	mu    sync.Mutex
	state SceneState
	stage *Stage

	// stopping is set from the start of a stop until OnStop has run;
	// submissions are rejected meanwhile.
	stopping atomic.Bool
}

// ID returns the scene's registration id.
func (sc *SceneContext) ID() int { return sc.id }

// Scene returns the scene implementation.
func (sc *SceneContext) Scene() Scene { return sc.scene }

// Manager returns the owning manager.
func (sc *SceneContext) Manager() *Manager { return sc.manager }

// Name returns the scene's display name.
func (sc *SceneContext) Name() string {
	if sc.scene == nil {
		return ""
	}
	return sc.scene.Name()
}

// State returns the current scene state.
func (sc *SceneContext) State() SceneState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// Describe returns the presentation view of the scene.
func (sc *SceneContext) Describe() Description {
	return Description{ID: sc.id, Name: sc.Name(), State: sc.State()}
}

// Stage returns the Stage bound to the scene's running action, or nil.
// The returned Stage is only usable until that action settles.
func (sc *SceneContext) Stage() *Stage {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.stage
}

// Run builds an action from work and submits it.
//
// Parameters:
//   - work: The action body; its ctx is cancelled on interruption
//   - opts: Optional name and settlement callback
//
// Returns:
//   - *ActionTask: The submitted task, nil on error
//   - error: nil on success, or any error from NewAction or Submit
func (sc *SceneContext) Run(work ActionFunc, opts ...ActionOption) (*ActionTask, error) {
	task, err := NewAction(sc, work, opts...)
	if err != nil {
		return nil, err
	}
	if err := sc.Submit(task); err != nil {
		return nil, err
	}
	return task, nil
}

// Submit hands a task built by NewAction to the executor. The task must
// belong to this scene.
//
// Returns:
//   - error: nil on success, or:
//   - ErrInvalidAction if task is nil or owned by another scene
//   - ErrIllegalOperation if the executor refuses it (see Executor.Execute)
func (sc *SceneContext) Submit(task *ActionTask) error {
	if task == nil || task.scene != sc {
		return fmt.Errorf("%w: task does not belong to scene %d", ErrInvalidAction, sc.id)
	}
	return sc.manager.executor.Execute(task)
}

// Stop asks the manager to stop this scene.
//
// Returns:
//   - error: Whatever Manager.StopScene returns for this scene
func (sc *SceneContext) Stop() error {
	return sc.manager.StopScene(sc.id)
}

func (sc *SceneContext) logger() Logger {
	return sc.manager.logger
}

// setState moves the scene to state and notifies listeners on change.
func (sc *SceneContext) setState(state SceneState) {
	sc.manager.notifyMu.Lock()
	defer sc.manager.notifyMu.Unlock()

	sc.mu.Lock()
	from := sc.state
	sc.state = state
	sc.mu.Unlock()

	if from != state {
		sc.manager.dispatchState(sc.change(from, state))
	}
}

// finishStop publishes SceneStopped and clears the stopping flag in the
// same notifyMu section, so no observer of the Stopped transition sees a
// stop still in progress.
func (sc *SceneContext) finishStop() {
	sc.manager.notifyMu.Lock()
	defer sc.manager.notifyMu.Unlock()

	sc.mu.Lock()
	from := sc.state
	sc.state = SceneStopped
	sc.mu.Unlock()
	sc.stopping.Store(false)

	if from != SceneStopped {
		sc.manager.dispatchState(sc.change(from, SceneStopped))
	}
}

// compareAndSetState moves the scene from one state to another and
// reports whether it did.
func (sc *SceneContext) compareAndSetState(from, to SceneState) bool {
	sc.manager.notifyMu.Lock()
	defer sc.manager.notifyMu.Unlock()

	sc.mu.Lock()
	if sc.state != from {
		sc.mu.Unlock()
		return false
	}
	sc.state = to
	sc.mu.Unlock()

	if from != to {
		sc.manager.dispatchState(sc.change(from, to))
	}
	return true
}

func (sc *SceneContext) change(from, to SceneState) StateChange {
	return StateChange{
		SceneID:   sc.id,
		SceneName: sc.Name(),
		From:      from,
		To:        to,
		At:        time.Now(),
	}
}

func (sc *SceneContext) bindStage(stage *Stage) {
	sc.mu.Lock()
	sc.stage = stage
	sc.mu.Unlock()
}

// unbindStage clears the bound stage if it is still stage.
func (sc *SceneContext) unbindStage(stage *Stage) {
	sc.mu.Lock()
	if sc.stage == stage {
		sc.stage = nil
	}
	sc.mu.Unlock()
}

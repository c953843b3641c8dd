package automation

import (
	"context"
	"fmt"
	"sync"
)

// StopOutcome reports what StopSceneActions did.
type StopOutcome int

// Stop outcomes.
const (
	// StopNothing means the scene neither owned the running task nor the
	// pending slot.
	StopNothing StopOutcome = iota

	// StopDiscardedPending means the scene's pending task was dropped and
	// nothing of it is running.
	StopDiscardedPending

	// StopInterrupting means the scene's running task is being cancelled;
	// the scene reaches SceneStopped when it settles.
	StopInterrupting
)

// Executor runs at most one ActionTask at a time.
//
// A submission while a task runs goes into a single pending slot,
// replacing whatever was there, and starts an interruption of the running
// task unless one is already underway. When the running task settles, the
// pending task (if any) starts.
//
// Thread Safety: all methods are safe for concurrent use.
type Executor struct {
	manager *Manager
	logger  Logger

	mu            sync.Mutex
	current       *ActionTask
	pending       *ActionTask
	interrupting  bool
	stopRequested bool
	idle          chan struct{}
}

func newExecutor(m *Manager) *Executor {
	idle := make(chan struct{})
	close(idle)
	return &Executor{manager: m, logger: m.logger, idle: idle}
}

// Execute runs task now if nothing is running, otherwise parks it in the
// pending slot and interrupts the running task.
//
// Returns:
//   - error: nil on success, or:
//   - ErrInvalidAction for a nil task
//   - ErrIllegalOperation if the task already ran, its scene is stopped or
//     stopping, or an interrupt sequence is re-entered
func (e *Executor) Execute(task *ActionTask) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidAction)
	}
	if state := task.State(); state != TaskCreated {
		return fmt.Errorf("%w: task %s is already %s", ErrIllegalOperation, task.id, state)
	}
	sc := task.scene

	e.mu.Lock()
	defer e.mu.Unlock()

	// Checked under e.mu so a stop that completes while this call waits for
	// the lock is observed.
	if sc.State() == SceneStopped || sc.stopping.Load() {
		return fmt.Errorf("%w: scene %d is not started", ErrIllegalOperation, sc.id)
	}

	if e.current == nil {
		if err := e.startLocked(task); err != nil {
			sc.setState(SceneIdle)
			return err
		}
		return nil
	}

	if e.stopRequested && e.current.scene == sc {
		return fmt.Errorf("%w: scene %d is stopping", ErrIllegalOperation, sc.id)
	}

	displaced := e.pending
	e.pending = task
	if displaced != nil && displaced != task {
		e.discardLocked(displaced, task)
	}

	e.logger.Debug("action queued",
		"scene_id", sc.id,
		"action", task.name,
		"running_scene_id", e.current.scene.id,
	)

	if e.interrupting {
		// The running task is already being cancelled; the new pending task
		// follows it.
		if sc != e.current.scene {
			e.current.scene.setState(SceneInterrupting)
			sc.setState(ScenePreparing)
		}
		return nil
	}
	return e.beginInterruptLocked()
}

// StopSceneActions drops the pending task if it belongs to sceneID and
// interrupts the running task with ReasonSceneStop if that belongs to
// sceneID. An interrupt already in flight for a same-scene replacement is
// upgraded to ReasonSceneStop.
//
// Parameters:
//   - sceneID: The scene whose actions should stop
//
// Returns:
//   - StopOutcome: StopNothing if no task belonged to the scene,
//     StopDiscardedPending if only the pending task was dropped, or
//     StopInterrupting if the running task is being cancelled and the
//     scene will reach SceneStopped once it settles
func (e *Executor) StopSceneActions(sceneID int) StopOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := StopNothing
	if e.pending != nil && e.pending.scene.id == sceneID {
		e.pending.discard(ReasonSceneStop)
		e.pending = nil
		outcome = StopDiscardedPending
	}

	if e.current == nil || e.current.scene.id != sceneID {
		return outcome
	}

	e.stopRequested = true
	if e.interrupting {
		if outcome == StopDiscardedPending {
			// The same-scene successor is gone, so the running action now
			// ends as a stop rather than a local intercept.
			e.current.escalate(ReasonSceneStop)
		}
		e.current.scene.setState(SceneInterrupting)
		return StopInterrupting
	}
	if err := e.beginInterruptLocked(); err != nil {
		e.logger.Error("stop could not interrupt action", "scene_id", sceneID, "error", err)
	}
	return StopInterrupting
}

// Current returns the running task, or nil.
func (e *Executor) Current() *ActionTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Pending returns the task waiting in the pending slot, or nil.
func (e *Executor) Pending() *ActionTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Wait blocks until no task is running or ctx is done.
//
// Parameters:
//   - ctx: Bounds the wait
//
// Returns:
//   - error: nil once the executor is idle, or ctx.Err()
func (e *Executor) Wait(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginInterruptLocked picks the stop reason and cancels the running task.
// Must be called with e.mu held and a task running.
func (e *Executor) beginInterruptLocked() error {
	if e.interrupting {
		return fmt.Errorf("%w: interruption already in flight", ErrIllegalOperation)
	}
	cur := e.current
	if cur == nil {
		return fmt.Errorf("%w: no running action to interrupt", ErrIllegalOperation)
	}

	reason := ReasonSceneStop
	switch {
	case e.pending == nil:
		cur.scene.setState(SceneInterrupting)
	case e.pending.scene == cur.scene:
		reason = ReasonLocalIntercept
	default:
		reason = ReasonExternalIntercept
		cur.scene.setState(SceneInterrupting)
		e.pending.scene.setState(ScenePreparing)
	}

	e.interrupting = true
	if !cur.interrupt(reason) {
		e.logger.Debug("action already finishing, interrupt ignored",
			"scene_id", cur.scene.id,
			"action", cur.name,
		)
		return nil
	}

	e.logger.Info("action interrupted",
		"scene_id", cur.scene.id,
		"action", cur.name,
		"reason", reason,
	)
	return nil
}

// startLocked mints a stage and runs task. Must be called with e.mu held
// and no task running.
func (e *Executor) startLocked(task *ActionTask) error {
	stage := e.manager.NewStage()
	task.scene.setState(ScenePlaying)
	if err := task.execute(stage); err != nil {
		stage.revoke()
		return err
	}

	select {
	case <-e.idle:
		e.idle = make(chan struct{})
	default:
	}
	e.current = task

	e.logger.Info("action started",
		"scene_id", task.scene.id,
		"action", task.name,
		"task_id", task.id,
		"stage", stage.generation,
	)

	go e.await(task)
	return nil
}

// discardLocked drops a pending task replaced by another submission.
func (e *Executor) discardLocked(old, replacement *ActionTask) {
	reason := ReasonExternalIntercept
	if old.scene == replacement.scene {
		reason = ReasonLocalIntercept
	}
	old.discard(reason)

	if old.scene != replacement.scene && old.scene != e.current.scene && old.scene.State() == ScenePreparing {
		old.scene.setState(SceneIdle)
	}

	e.logger.Debug("pending action replaced",
		"scene_id", old.scene.id,
		"action", old.name,
		"by_scene_id", replacement.scene.id,
	)
}

// await waits for task to settle, updates its scene and starts the
// pending task. One await runs per executed task.
func (e *Executor) await(task *ActionTask) {
	<-task.Done()

	e.manager.dispatchSettlement(task.settlement())

	e.mu.Lock()
	reason, _ := task.StopReason()
	sc := task.scene
	next := e.pending
	stopRequested := e.stopRequested

	e.current = nil
	e.pending = nil
	e.interrupting = false
	e.stopRequested = false

	callOnStop := false
	switch {
	case reason == ReasonSceneStop || stopRequested:
		// Stopped is published after OnStop; submits stay blocked until then.
		sc.stopping.Store(true)
		callOnStop = true
	case next != nil && next.scene == sc:
		// Replaced by its own next action: no visible transition.
	default:
		sc.setState(SceneIdle)
	}

	e.logger.Info("action settled",
		"scene_id", sc.id,
		"action", task.name,
		"reason", reason,
	)

	if next != nil {
		if err := e.startLocked(next); err != nil {
			e.logger.Error("pending action failed to start", "scene_id", next.scene.id, "error", err)
			next.scene.setState(SceneIdle)
		}
	}
	if e.current == nil && !callOnStop {
		close(e.idle)
	}
	e.mu.Unlock()

	if !callOnStop {
		return
	}

	safeCall(e.logger, "scene on-stop hook", sc.scene.OnStop)
	sc.finishStop()

	e.mu.Lock()
	if e.current == nil {
		e.markIdleLocked()
	}
	e.mu.Unlock()
}

// markIdleLocked closes the idle channel unless it is already closed.
func (e *Executor) markIdleLocked() {
	select {
	case <-e.idle:
	default:
		close(e.idle)
	}
}

package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ActionFunc is the work of an action. ctx is cancelled when the action is
// interrupted; the work must return at its next blocking call. The cause,
// available through context.Cause, wraps ErrInterrupted.
type ActionFunc func(ctx context.Context, stage *Stage) error

// StopFunc is called once when an action settles, before its Stage is
// revoked. ctx is not cancelled by the interrupt, so the callback may still
// drive the display and the light (e.g. restoring the house light).
type StopFunc func(ctx context.Context, reason StopReason, stage *Stage)

// ActionOption configures an ActionTask.
type ActionOption func(*ActionTask)

// WithName labels the action in logs and history.
func WithName(name string) ActionOption {
	return func(t *ActionTask) {
		t.name = name
	}
}

// WithOnStop sets the settlement callback.
func WithOnStop(fn StopFunc) ActionOption {
	return func(t *ActionTask) {
		t.onStop = fn
	}
}

// ActionTask is one cancellable unit of scene work plus its settlement
// callback. A task runs at most once: Created → Running → Returned or
// Cancelled.
type ActionTask struct {
	id     string
	name   string
	scene  *SceneContext
	work   ActionFunc
	onStop StopFunc
	logger Logger

	mu              sync.Mutex
	state           TaskState
	reason          StopReason
	interrupted     bool
	interruptReason StopReason
	finished        bool
	cancel          context.CancelCauseFunc
	stage           *Stage
	err             error
	startedAt       time.Time
	settledAt       time.Time

	done chan struct{}
}

// NewAction builds an action owned by sc. It does nothing until submitted
// with SceneContext.Submit.
//
// Parameters:
//   - sc: The owning scene context
//   - work: The action body
//   - opts: Optional name and settlement callback
//
// Returns:
//   - *ActionTask: A task in TaskCreated
//   - error: nil on success, or ErrInvalidAction if sc or work is nil
func NewAction(sc *SceneContext, work ActionFunc, opts ...ActionOption) (*ActionTask, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: scene context is required", ErrInvalidAction)
	}
	if work == nil {
		return nil, fmt.Errorf("%w: work is required", ErrInvalidAction)
	}

	t := &ActionTask{
		id:     GenerateID(),
		name:   "action",
		scene:  sc,
		work:   work,
		logger: sc.logger(),
		state:  TaskCreated,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ID returns the task's unique identifier.
func (t *ActionTask) ID() string { return t.id }

// Name returns the task's label.
func (t *ActionTask) Name() string { return t.name }

// Scene returns the owning scene context.
func (t *ActionTask) Scene() *SceneContext { return t.scene }

// State returns the task's lifecycle state.
func (t *ActionTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StopReason returns the settlement reason. ok is false until the task
// has settled.
func (t *ActionTask) StopReason() (reason StopReason, ok bool) {
	select {
	case <-t.done:
	default:
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason, true
}

// Err returns the error the work returned, if any. Cancellation caused by
// an interrupt is not an error.
func (t *ActionTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the task has fully settled.
func (t *ActionTask) Done() <-chan struct{} {
	return t.done
}

// Join blocks until the task has fully settled or ctx is done.
//
// Returns:
//   - error: nil once settled, or ctx.Err()
func (t *ActionTask) Join(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute binds stage and starts the work. A second call fails with
// ErrIllegalOperation.
func (t *ActionTask) execute(stage *Stage) error {
	t.mu.Lock()
	if t.state != TaskCreated {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w: task %s is already %s", ErrIllegalOperation, t.id, state)
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	t.state = TaskRunning
	t.stage = stage
	t.cancel = cancel
	t.startedAt = time.Now()
	t.mu.Unlock()

	t.scene.bindStage(stage)
	go t.run(ctx)
	return nil
}

// interrupt requests cancellation with reason. It reports false, and does
// nothing, when the work has already finished or an interrupt was already
// requested.
func (t *ActionTask) interrupt(reason StopReason) bool {
	t.mu.Lock()
	if t.state != TaskRunning || t.finished || t.interrupted {
		t.mu.Unlock()
		return false
	}
	t.interrupted = true
	t.interruptReason = reason
	cancel := t.cancel
	t.mu.Unlock()

	cancel(fmt.Errorf("%w: %s", ErrInterrupted, reason))
	return true
}

// escalate replaces the reason of an interrupt already in flight. It
// reports false when no interrupt was requested or the work has finished.
func (t *ActionTask) escalate(reason StopReason) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.interrupted || t.finished {
		return false
	}
	t.interruptReason = reason
	return true
}

// discard settles a task that never ran. No callback is invoked since no
// Stage was ever bound.
func (t *ActionTask) discard(reason StopReason) bool {
	t.mu.Lock()
	if t.state != TaskCreated {
		t.mu.Unlock()
		return false
	}
	t.state = TaskCancelled
	t.reason = reason
	t.finished = true
	t.settledAt = time.Now()
	t.mu.Unlock()

	close(t.done)
	return true
}

func (t *ActionTask) run(ctx context.Context) {
	err := t.invoke(ctx)

	t.mu.Lock()
	t.finished = true
	if t.interrupted {
		t.state = TaskCancelled
		t.reason = t.interruptReason
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		t.state = TaskReturned
		t.reason = ReasonReturn
	}
	t.err = err
	reason := t.reason
	stage := t.stage
	cancel := t.cancel
	t.mu.Unlock()

	cancel(nil)

	if err != nil {
		t.logger.Warn("action failed",
			"scene_id", t.scene.ID(),
			"action", t.name,
			"task_id", t.id,
			"error", err,
		)
	}

	if t.onStop != nil {
		safeCall(t.logger, "action stop callback", func() {
			t.onStop(context.WithoutCancel(ctx), reason, stage)
		})
	}

	stage.revoke()
	t.scene.unbindStage(stage)

	t.mu.Lock()
	t.settledAt = time.Now()
	t.mu.Unlock()

	close(t.done)
}

// invoke runs the work, turning a panic into an error.
func (t *ActionTask) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return t.work(ctx, t.stage)
}

// settlement builds the history record. Only meaningful after Done.
func (t *ActionTask) settlement() Settlement {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Settlement{
		TaskID:    t.id,
		SceneID:   t.scene.ID(),
		SceneName: t.scene.Name(),
		Action:    t.name,
		Reason:    t.reason,
		StartedAt: t.startedAt,
		SettledAt: t.settledAt,
	}
	if !t.startedAt.IsZero() {
		s.DurationMS = t.settledAt.Sub(t.startedAt).Milliseconds()
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// safeCall runs fn, logging instead of propagating a panic.
func safeCall(logger Logger, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic", "in", what, "panic", r)
		}
	}()
	fn()
}

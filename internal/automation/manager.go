package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the scene engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

type stateSub struct {
	id int
	fn StateListener
}

type settlementSub struct {
	id int
	fn SettlementListener
}

// Manager is the registry of scenes and the entry point for start and
// stop requests. It owns the long-lived display and lighting handles and
// mints a Stage over them for each executed action.
//
// All registries are per instance; two managers never share state.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	display  Display
	lighting Lighting
	logger   Logger
	executor *Executor

	mu     sync.RWMutex
	nextID int
	scenes map[int]*SceneContext

	stageGen atomic.Uint64

	// notifyMu serialises state changes with their notifications so
	// listeners observe transitions in order.
	notifyMu sync.Mutex

	subMu          sync.RWMutex
	nextSubID      int
	stateSubs      []stateSub
	settlementSubs []settlementSub
}

// NewManager creates a scene manager over the given devices. Either device
// may be nil; stage calls to a missing device fail with
// ErrDeviceUnavailable.
//
// Parameters:
//   - d: Display device (may be nil)
//   - l: Lighting device (may be nil)
//   - opts: Optional settings such as WithLogger
func NewManager(d Display, l Lighting, opts ...Option) *Manager {
	m := &Manager{
		display:  d,
		lighting: l,
		logger:   noopLogger{},
		scenes:   make(map[int]*SceneContext),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.executor = newExecutor(m)
	return m
}

// Executor returns the manager's action executor.
func (m *Manager) Executor() *Executor {
	return m.executor
}

// RegisterScene builds a scene with factory and registers it in state
// SceneStopped under the next sequential id (starting at 1).
//
// Returns:
//   - int: the new scene id
//   - error: ErrInvalidScene if the factory is nil, returns nil, or the
//     scene name is invalid or already registered
func (m *Manager) RegisterScene(factory SceneFactory) (int, error) {
	if factory == nil {
		return 0, fmt.Errorf("%w: factory is required", ErrInvalidScene)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sc := &SceneContext{
		id:      m.nextID + 1,
		manager: m,
		state:   SceneStopped,
	}
	scene := factory(sc)
	if scene == nil {
		return 0, fmt.Errorf("%w: factory returned no scene", ErrInvalidScene)
	}
	if err := validateSceneName(scene.Name()); err != nil {
		return 0, err
	}
	for _, other := range m.scenes {
		if other.Name() == scene.Name() {
			return 0, fmt.Errorf("%w: duplicate name %q", ErrInvalidScene, scene.Name())
		}
	}

	sc.scene = scene
	m.nextID = sc.id
	m.scenes[sc.id] = sc

	m.logger.Info("scene registered", "scene_id", sc.id, "name", scene.Name())
	return sc.id, nil
}

// Scene returns the context of a registered scene.
//
// Returns:
//   - *SceneContext: The scene's runtime record
//   - error: nil on success, or ErrSceneNotFound for an unknown id
func (m *Manager) Scene(id int) (*SceneContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sc, ok := m.scenes[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrSceneNotFound, id)
	}
	return sc, nil
}

// FindByName returns the id of the scene with the given name.
//
// Returns:
//   - int: The scene id
//   - error: nil on success, or ErrSceneNotFound if no scene has that name
func (m *Manager) FindByName(name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, sc := range m.scenes {
		if sc.Name() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: name %q", ErrSceneNotFound, name)
}

// Describe returns the presentation view of one scene.
//
// Returns:
//   - Description: id, name and state of the scene
//   - error: nil on success, or ErrSceneNotFound for an unknown id
func (m *Manager) Describe(id int) (Description, error) {
	sc, err := m.Scene(id)
	if err != nil {
		return Description{}, err
	}
	return sc.Describe(), nil
}

// Scenes returns descriptions of all scenes ordered by id.
func (m *Manager) Scenes() []Description {
	m.mu.RLock()
	contexts := make([]*SceneContext, 0, len(m.scenes))
	for _, sc := range m.scenes {
		contexts = append(contexts, sc)
	}
	m.mu.RUnlock()

	sort.Slice(contexts, func(i, j int) bool { return contexts[i].id < contexts[j].id })

	out := make([]Description, 0, len(contexts))
	for _, sc := range contexts {
		out = append(out, sc.Describe())
	}
	return out
}

// StartScene moves a stopped scene to SceneIdle and calls its OnStart.
//
// Returns:
//   - error: ErrSceneNotFound for an unknown id, ErrIllegalOperation if
//     the scene is not stopped
func (m *Manager) StartScene(id int) error {
	sc, err := m.Scene(id)
	if err != nil {
		return err
	}
	if !sc.compareAndSetState(SceneStopped, SceneIdle) {
		return fmt.Errorf("%w: scene %d is %s", ErrIllegalOperation, id, sc.State())
	}

	m.logger.Info("scene started", "scene_id", id, "name", sc.Name())
	safeCall(m.logger, "scene on-start hook", sc.scene.OnStart)
	return nil
}

// StopScene stops a scene.
//
// A scene with no running action is stopped synchronously: OnStop runs,
// then the scene moves to SceneStopped. A scene whose action is running is
// interrupted with ReasonSceneStop and reaches SceneStopped when that
// action settles. Stopping a stopped scene does nothing.
//
// Returns:
//   - error: nil on success, or ErrSceneNotFound for an unknown id
func (m *Manager) StopScene(id int) error {
	sc, err := m.Scene(id)
	if err != nil {
		return err
	}
	if sc.State() == SceneStopped {
		m.logger.Debug("scene already stopped", "scene_id", id)
		return nil
	}

	if !sc.stopping.CompareAndSwap(false, true) {
		return nil
	}

	if m.executor.StopSceneActions(id) == StopInterrupting {
		// The executor clears stopping once the action settles and OnStop ran.
		m.logger.Info("scene stopping", "scene_id", id, "name", sc.Name())
		return nil
	}

	safeCall(m.logger, "scene on-stop hook", sc.scene.OnStop)
	sc.finishStop()

	m.logger.Info("scene stopped", "scene_id", id, "name", sc.Name())
	return nil
}

// NewStage mints a Stage over the manager's devices. The executor calls
// this once per executed action.
func (m *Manager) NewStage() *Stage {
	return newStage(m.stageGen.Add(1), m.display, m.lighting)
}

// Teardown requests a stop of every registered scene and returns without
// waiting for running actions to settle. Use Shutdown to wait.
func (m *Manager) Teardown() {
	for _, d := range m.Scenes() {
		if err := m.StopScene(d.ID); err != nil {
			m.logger.Warn("teardown could not stop scene", "scene_id", d.ID, "error", err)
		}
	}
}

// Shutdown stops every scene and waits until no action is running or ctx
// is done.
//
// Parameters:
//   - ctx: Bounds the wait for running actions
//
// Returns:
//   - error: nil once idle, or the wrapped ctx error
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Teardown()
	if err := m.executor.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for actions to settle: %w", err)
	}
	return nil
}

// Subscribe registers a listener for scene state changes. The returned
// function removes it.
func (m *Manager) Subscribe(fn StateListener) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.stateSubs = append(m.stateSubs, stateSub{id: id, fn: fn})

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.stateSubs {
			if s.id == id {
				m.stateSubs = append(m.stateSubs[:i:i], m.stateSubs[i+1:]...)
				return
			}
		}
	}
}

// OnSettlement registers a listener for action settlements. The returned
// function removes it.
func (m *Manager) OnSettlement(fn SettlementListener) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.settlementSubs = append(m.settlementSubs, settlementSub{id: id, fn: fn})

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.settlementSubs {
			if s.id == id {
				m.settlementSubs = append(m.settlementSubs[:i:i], m.settlementSubs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) dispatchState(change StateChange) {
	m.subMu.RLock()
	subs := m.stateSubs
	m.subMu.RUnlock()

	m.logger.Debug("scene state changed",
		"scene_id", change.SceneID,
		"from", change.From,
		"to", change.To,
	)
	for _, s := range subs {
		safeCall(m.logger, "state listener", func() { s.fn(change) })
	}
}

func (m *Manager) dispatchSettlement(s Settlement) {
	m.subMu.RLock()
	subs := m.settlementSubs
	m.subMu.RUnlock()

	for _, sub := range subs {
		safeCall(m.logger, "settlement listener", func() { sub.fn(s) })
	}
}

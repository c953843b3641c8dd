package automation

import "time"

// SceneState is the lifecycle state of a registered scene.
type SceneState string

// Scene states.
const (
	// SceneStopped is the initial state, and the state after a stop completes.
	SceneStopped SceneState = "stopped"

	// SceneIdle means started with no action running.
	SceneIdle SceneState = "idle"

	// ScenePlaying means the scene owns the running action.
	ScenePlaying SceneState = "playing"

	// SceneInterrupting means the scene's running action is being cancelled.
	SceneInterrupting SceneState = "interrupting"

	// ScenePreparing means the scene's action is accepted and waiting for
	// another scene's action to settle.
	ScenePreparing SceneState = "preparing"
)

// AllSceneStates returns all scene states in lifecycle order.
func AllSceneStates() []SceneState {
	return []SceneState{SceneStopped, SceneIdle, ScenePlaying, SceneInterrupting, ScenePreparing}
}

// Active reports whether the scene has been started and not yet stopped.
func (s SceneState) Active() bool {
	return s != SceneStopped && s != ""
}

// StopReason says why an action settled.
type StopReason string

// Stop reasons.
const (
	// ReasonReturn means the work finished on its own.
	ReasonReturn StopReason = "return"

	// ReasonLocalIntercept means the same scene replaced its own action.
	ReasonLocalIntercept StopReason = "local_intercept"

	// ReasonExternalIntercept means another scene's action preempted it.
	ReasonExternalIntercept StopReason = "external_intercept"

	// ReasonSceneStop means the scene was stopped with no replacement.
	ReasonSceneStop StopReason = "scene_stop"
)

// AllStopReasons returns every stop reason.
func AllStopReasons() []StopReason {
	return []StopReason{ReasonReturn, ReasonLocalIntercept, ReasonExternalIntercept, ReasonSceneStop}
}

// TaskState is the lifecycle state of an ActionTask.
type TaskState string

// Task states. Returned and Cancelled are terminal.
const (
	TaskCreated   TaskState = "created"
	TaskRunning   TaskState = "running"
	TaskReturned  TaskState = "returned"
	TaskCancelled TaskState = "cancelled"
)

// Description is the presentation view of a scene.
type Description struct {
	ID    int        `json:"id"`
	Name  string     `json:"name"`
	State SceneState `json:"state"`
}

// StateChange is emitted for every scene state transition.
type StateChange struct {
	SceneID   int        `json:"scene_id"`
	SceneName string     `json:"scene_name"`
	From      SceneState `json:"from"`
	To        SceneState `json:"to"`
	At        time.Time  `json:"at"`
}

// Settlement is the record of one settled action.
type Settlement struct {
	TaskID     string     `json:"task_id"`
	SceneID    int        `json:"scene_id"`
	SceneName  string     `json:"scene_name"`
	Action     string     `json:"action"`
	Reason     StopReason `json:"reason"`
	StartedAt  time.Time  `json:"started_at"`
	SettledAt  time.Time  `json:"settled_at"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// StateListener receives scene state changes.
type StateListener func(StateChange)

// SettlementListener receives action settlements.
type SettlementListener func(Settlement)

// Package automation is the showctl scene engine: the scheduler and state
// machine that runs one scene action at a time and hands it exclusive use of
// the display and the stage light.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                 Manager (manager.go)                      │
//	│  Registry of SceneContexts, start/stop entry point,       │
//	│  owner of the long-lived display and lighting handles     │
//	│        │                         │                        │
//	│        ▼                         ▼                        │
//	│  ┌──────────────┐        ┌───────────────────┐            │
//	│  │ SceneContext │──Run──▶│ Executor          │            │
//	│  │ (scene.go)   │        │ (executor.go)     │            │
//	│  └──────────────┘        │ one running task, │            │
//	│                          │ one pending slot  │            │
//	│                          └─────────┬─────────┘            │
//	│                                    ▼                      │
//	│                          ┌───────────────────┐            │
//	│                          │ ActionTask        │──▶ Stage   │
//	│                          │ (task.go)         │  (stage.go)│
//	│                          └───────────────────┘            │
//	└──────────────────────────────────────────────────────────┘
//
// # Scheduling
//
// At most one ActionTask runs at any instant. Submitting while another task
// runs parks the new task in a single pending slot (the last submission
// wins) and interrupts the running task:
//
//   - same scene:      the running task settles with ReasonLocalIntercept
//   - different scene: the running scene goes Interrupting, the new one
//     Preparing, and the running task settles with ReasonExternalIntercept
//   - explicit stop:   the running task settles with ReasonSceneStop
//
// Cancellation is cooperative. The work function receives a context that is
// cancelled on interrupt and must return at its next blocking call. The
// pending task starts only after the running one has fully settled.
//
// # Settlement
//
// A task settles exactly once: its stop reason is fixed, its OnStop
// callback runs, its Stage is revoked, and Join/Done release. Any use of a
// revoked Stage fails with ErrInvalidCapability.
//
// # Thread Safety
//
// Manager, SceneContext, Executor and ActionTask are safe for concurrent
// use. State and settlement listeners are called synchronously from the
// goroutine making the change and must not call back into the Manager.
//
// # Usage
//
//	mgr := automation.NewManager(projector, bulb, automation.WithLogger(log))
//	id, err := mgr.RegisterScene(func(sc *automation.SceneContext) automation.Scene {
//	    return newIntroScene(sc)
//	})
//	if err := mgr.StartScene(id); err != nil {
//	    return err
//	}
//	defer mgr.Shutdown(ctx)
package automation

package main

import (
	"context"
	"time"

	"github.com/nerrad567/showctl/internal/automation"
	"github.com/nerrad567/showctl/internal/infrastructure/logging"
	"github.com/nerrad567/showctl/internal/infrastructure/mqtt"
)

// relayBufferSize is the event queue depth. Events beyond it are dropped.
const relayBufferSize = 512

// recordTimeout bounds one history insert.
const recordTimeout = 5 * time.Second

// publisher is the part of the MQTT client the relay uses.
type publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// eventRelay moves manager events off the engine's listener path. State
// changes are mirrored to MQTT (retained) and settlements are mirrored and
// recorded in the action history. Either sink may be nil.
type eventRelay struct {
	mqtt    publisher
	history automation.History
	logger  *logging.Logger
	topics  mqtt.Topics
	queue   chan any
}

func newEventRelay(p publisher, h automation.History, logger *logging.Logger, size int) *eventRelay {
	if size <= 0 {
		size = relayBufferSize
	}
	return &eventRelay{mqtt: p, history: h, logger: logger, queue: make(chan any, size)}
}

// attach subscribes the relay to the manager and returns the detach func.
func (r *eventRelay) attach(m *automation.Manager) func() {
	unsubState := m.Subscribe(func(c automation.StateChange) { r.enqueue(c) })
	unsubSettled := m.OnSettlement(func(s automation.Settlement) { r.enqueue(s) })
	return func() {
		unsubState()
		unsubSettled()
	}
}

func (r *eventRelay) enqueue(ev any) {
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("event relay queue full, dropping event")
	}
}

// Run handles queued events until ctx is done, then drains the queue.
func (r *eventRelay) Run(ctx context.Context) {
	for {
		select {
		case ev := <-r.queue:
			r.handle(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *eventRelay) handle(ev any) {
	switch e := ev.(type) {
	case automation.StateChange:
		r.publish(r.topics.CoreSceneState(e.SceneID), e, true)
	case automation.Settlement:
		r.publish(r.topics.CoreActionSettled(e.SceneID), e, false)
		if r.history == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.history.Record(ctx, e); err != nil {
			r.logger.Error("recording action history", "scene", e.SceneName, "task_id", e.TaskID, "error", err)
		}
	}
}

func (r *eventRelay) publish(topic string, v any, retained bool) {
	if r.mqtt == nil {
		return
	}
	if err := r.mqtt.PublishJSON(topic, v, retained); err != nil {
		r.logger.Debug("mirroring event to MQTT", "topic", topic, "error", err)
	}
}

// Package mqtt provides the MQTT bus connection for showctl.
//
// The show controller never talks to hardware directly. The media player and
// the smart bulb each sit behind a small bridge process that speaks MQTT:
//
//	showctl core ──command──▶ MQTT broker ──▶ display / lighting bridge
//	showctl core ◀──state──── MQTT broker ◀── display / lighting bridge
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees (raw bytes or JSON)
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament so bridges can see the core go away
//
// Handlers run on paho's goroutines. A handler that panics is recovered and
// logged; a handler error is logged and otherwise ignored.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceCommand(mqtt.KindLighting, "stage-bulb")
//	err = client.PublishJSON(topic, cmd, false)
package mqtt

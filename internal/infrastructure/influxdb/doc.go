// Package influxdb records the show timeline to InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, a ping based
// health check and two domain writers: scene state transitions
// (measurement "scene_state") and action settlements (measurement
// "action_settlement"). The manager's listeners feed both.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // timeline recording switched off
//	}
//	defer client.Close()
//
//	manager.Subscribe(client.WriteSceneState)
//	manager.OnSettlement(client.WriteSettlement)
//
// Writes never block the caller; batch failures are reported through the
// callback set with SetOnError.
package influxdb

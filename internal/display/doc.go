// Package display drives the show's video output through a media player
// bridge on MQTT.
//
// The bridge owns the actual player (mpv, VLC, a projector's built-in
// player) and speaks a small protocol:
//
//	showctl/command/display/{player}   play, pause, stop, seek
//	showctl/state/display/{player}     {status, media, position_ms, command_id}
//
// The bridge publishes a state report whenever playback status changes and
// periodically while playing, so position waits resolve at report
// granularity (typically 100-250ms).
//
// Blocking calls (Play, WaitUntilPosition) take a context and return
// ctx.Err() as soon as it is cancelled. This is how a scene action that is
// being interrupted gets out of a long playback promptly.
package display

// Package cuelist builds automation scenes from the "scenes" section of the
// configuration file.
//
// A cue-list scene is a named set of cues. Triggering a cue submits one
// action that runs the cue's steps in order through the action's Stage:
//
//	scenes:
//	  - name: lobby
//	    autostart: loop
//	    cues:
//	      - name: loop
//	        steps:
//	          - light: {mode: temperature, kelvin: 2700, brightness: 60}
//	          - play: {path: /media/lobby.mp4, wait: true, resume: true}
//	        on_stop:
//	          reset_light: true
//	          stop_display: true
//
// Steps block on the action's context, so interrupting the action (another
// cue, another scene, or a scene stop) ends the cue at its current step.
// The on_stop block runs at settlement with the Stage still valid.
package cuelist

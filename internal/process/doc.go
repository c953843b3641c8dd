// Package process supervises the optional external media-player bridge
// (for example an mpv to MQTT bridge) that showctl's display client talks
// to.
//
// The Supervisor starts the bridge in its own process group, logs its
// output line by line, and restarts it with exponential backoff when it
// exits unexpectedly. A run that stays up for StableAfter resets the
// backoff.
//
//	sup := process.New(process.FromConfig("player", cfg.Display.Process), logger)
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop(context.Background())
package process

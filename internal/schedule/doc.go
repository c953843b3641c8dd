// Package schedule starts and stops scenes on cron expressions from the
// "schedules" configuration section.
//
// Scene names are resolved once, when the Scheduler is built; an unknown
// scene or a malformed expression is a configuration error. A job that
// fails when it fires (for example starting a scene that is already
// running) is logged and recorded in the audit log, and never retried.
//
// Expressions use the standard five fields plus the @daily style
// descriptors, evaluated in the configured show timezone.
package schedule

/*
Package logging provides beacon's structured logging, built on zerolog.

	Init(Config{Level: InfoLevel, JSONOutput: true, Output: os.Stdout})
	log := WithComponent("forkdetector")
	log.Warn().Str("layer", "L0m").Int("minority", 1).Msg("fork detected")

Component loggers carry node_id/layer/event_id fields so a single tick's
log lines can be correlated without a request ID scheme. cmd/beacon
initializes JSON output in both daemon and --once modes; console output
(human-readable, colorized) is used only for the fatal message printed
when the configuration cannot be loaded.
*/
package logging

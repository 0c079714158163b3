// Package main is the safexl command line tool for cleaning up spreadsheet
// host processes outside of any session.
//
// Commands:
//   - status: report running hosts and PID records left by sessions
//   - kill-tracked: kill hosts recorded by sessions that never tore down
//   - kill-all: kill every host process (requires --force)
//   - open-files: list files held open by host processes
//
// Configuration:
//   - Environment variables (SAFEXL_*, LOG_LEVEL, LOG_DEV)
//   - --dev flag for console logs at debug level
//   - --metrics-file writes termination counters in Prometheus text format
//
// Usage:
//
//	# After a crashed automation run
//	safexl kill-tracked
//
//	# Nothing else should be running
//	safexl kill-all --force
package main

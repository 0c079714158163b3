// Package config provides environment-based configuration for safexl.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Host: ProgID, executable name, how long to wait for a killed host to exit
//   - State: directory for PID tracking files and whether tracking is on
//   - Logging: Log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	insp := process.NewInspector(cfg.Host.ProcessName)
//
// Environment Variables:
//   - SAFEXL_PROG_ID, SAFEXL_PROCESS_NAME, SAFEXL_KILL_WAIT
//   - SAFEXL_STATE_DIR, SAFEXL_TRACK_PIDS
//   - LOG_LEVEL, LOG_DEV
package config

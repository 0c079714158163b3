// Package process inspects and terminates host processes in the OS process table.
//
// The Inspector finds host instances by executable name, correlates an
// application handle with its backing PID (through the host's top-level
// window), and kills processes. Killing is idempotent: a process that has
// already exited counts as terminated.
//
// Example Usage:
//
//	insp := process.NewInspector("EXCEL.EXE")
//	n, err := insp.KillAllHostInstances()
package process

/*
Package monitoring provides Prometheus metrics for automation sessions.

# Overview

Sessions, teardown duration, document cleanup and forced host terminations
are counted. Collectors are registered on a caller-supplied registerer so an
embedding program decides whether and where they are exposed.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	metrics.SessionOpened()
	metrics.DocumentsClosedAdd(2, 0)
	metrics.HostsTerminatedAdd(monitoring.ReasonSession, 1)
	metrics.SessionClosed(time.Since(start))

A nil *Metrics records nothing, so components accept an optional collector.
*/
package monitoring

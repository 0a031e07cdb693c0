/*
Package metrics provides Prometheus metrics for SmartPC.

	┌─────────────┐
	│  Collector  │
	└──────┬──────┘
	       │
	┌──────▼───────┐      ┌─────────────────┐
	│  Prometheus  │─────▶│  GET /metrics   │
	│   Registry   │      │  (API listener) │
	└──────────────┘      └─────────────────┘

Series:

  - http_requests_total, http_request_duration_seconds: per route and status
  - operations_total, operation_duration_seconds, operation_size_bytes: every
    call to object storage, the metadata table, the inventory and compute
  - errors_total: by operation and error code
  - retries_total: retried calls per dependency
  - rollback_steps_total: compensating steps after a failed instance launch

A disabled Collector, or a nil one, accepts every Record call and does nothing.
*/
package metrics

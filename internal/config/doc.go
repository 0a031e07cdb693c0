/*
Package config provides configuration management for SmartPC.

Values are resolved in three layers, later layers winning:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (SMARTPC_*, .env)                 │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File (YAML)           │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Sections

  - global: log level, format and optional log file
  - server: listen address, timeouts and CORS
  - aws: region, optional endpoint override and static credentials
  - storage: region to bucket seed mapping, presigned URL lifetimes and the
    rename attempt limit
  - metadata: file metadata store, "memory" or "badger"
  - inventory: SQLite DSN of the instance inventory
  - compute: instance type compatibility list, storage sizes per configuration
    id, subnets per region, default quota and idle timeout
  - identity: optional HMAC secret for bearer tokens
  - retry: attempts and backoff applied to every managed-service call
  - monitoring: Prometheus metrics and dependency health thresholds

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("/etc/smartpc/config.yaml"); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

Validate checks struct tags with go-playground/validator and then the rules
that span fields, such as the default instance type being in the allow-list.
*/
package config

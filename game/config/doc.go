// Package config loads runtime settings for the gem table server.
//
// Settings come from three layers, each overriding the previous one:
//   - built-in defaults
//   - an optional JSON file
//   - GEMTABLE_* environment variables
//
// Configuration Format:
//
// Durations are plain integers in milliseconds:
//
//	{
//	  "addr": ":8080",
//	  "heartbeat_interval_ms": 10000,
//	  "health_check_interval_ms": 5000,
//	  "warn_threshold_ms": 20000,
//	  "termination_threshold_ms": 30000,
//	  "max_message_size": 8192,
//	  "send_buffer_size": 256,
//	  "rate_limit": 20,
//	  "rate_burst": 40,
//	  "room_reap_after_ms": 300000,
//	  "log_level": "info"
//	}
//
// Usage:
//
//	manager, err := config.NewManager("gemtable.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	settings := manager.Current()
//
// Validation:
//
// Every problem found is reported together in a single error. Invalid
// settings are never installed; Reload keeps the previous settings on error.
package config

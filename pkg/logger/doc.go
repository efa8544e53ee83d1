// Package logger provides the structured logging interface used across hyperdrive.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger as a constructor argument and tests can swap in a TestLogger.
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	logger.WithField("job_id", job.ID).Info("job claimed")
//
//	log := logger.GetLogger().WithField("component", "recovery")
//	log.WarnWithFields("reset started", map[string]interface{}{
//	    "reset":    3,
//	    "identity": "se",
//	})
//
// Configuration:
//   - Level: debug, info, warn, error
//   - Format: console (colored) or json
//   - File: optional path; receives JSON lines in addition to stdout
package logger

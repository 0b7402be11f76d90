// Package logger provides the structured logging interface used across igepub.
//
// It wraps zerolog with a colored console writer (stderr), an optional JSON
// format and an optional append-only log file. Components receive a Logger
// through their constructors; the command layer installs the process-wide
// instance with Initialize.
//
//	log := logger.GetLogger().WithField("component", "fetcher")
//	log.InfoWithFields("Fetch finished", map[string]interface{}{
//	    "accepted": 12,
//	    "processed": 40,
//	})
//
// Tests use NewTestLogger to assert on diagnostics and NewNopLogger when
// output does not matter.
package logger

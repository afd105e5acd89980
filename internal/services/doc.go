// Package services defines shared utilities consumed by the workflow
// engines and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp book IDs, stage keys, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (validation vs configuration vs external service)
//     uniform across engines.
//
// Use these helpers when wiring new engine logic so operational behaviour
// stays consistent across the tracker.
package services

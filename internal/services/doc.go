// Package services defines shared utilities consumed by the pipeline stages
// and the external capability clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - The failure taxonomy (ErrInvalidInput through ErrSync) plus the Wrap
//     helper that tags errors with a marker and stage detail.
//   - A bounded exponential retry loop shared by the HTTP and subprocess
//     capabilities.
//
// Use these helpers when wiring new stage logic so error classification and
// retries stay uniform across the pipeline.
package services

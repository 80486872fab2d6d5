// Package logging assembles structured slog loggers and formatting helpers used
// across the dubbing daemon and CLI.
//
// It owns the configurable console/JSON handlers, rotates file output with
// lumberjack, and exposes context-aware helpers so stage code can tag log
// lines with job IDs, stages, and correlation IDs. Per-stage level overrides
// come from logging.stage_overrides and are applied through ForStage.
package logging

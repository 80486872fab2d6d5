// Package jobs owns the dubbing job lifecycle: the closed status enum, the
// progress bands each status maps to, the SQLite store that persists job
// snapshots, and the Repository that serializes writes per job while letting
// readers load immutable snapshots without locking.
package jobs

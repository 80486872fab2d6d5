// Package preflight checks the filesystem paths, credentials and remote APIs
// the dubbing pipeline depends on.
//
// The daemon runs the local checks (RunLocal) at startup and logs failures.
// The CLI "dubber check" command runs RunAll, which also calls the
// translation and synthesis APIs once each with retries disabled.
package preflight

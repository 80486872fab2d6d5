// Package daemon runs the long-lived dubbing service.
//
// It ties the job store, the workflow manager, the event bus and the
// retention sweeper into one lifecycle guarded by a flock so only one
// instance owns a state directory. The HTTP API lives here as well; handlers
// translate requests into workflow.Manager calls and map service error kinds
// onto status codes.
//
// Pipeline behavior belongs in workflow and the capability packages. Keep this
// package to startup, shutdown and transport.
package daemon

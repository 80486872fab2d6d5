// Package workflow drives dubbing jobs through the pipeline.
//
// The Manager validates submissions, persists jobs through jobs.Repository
// and schedules them FIFO onto a fixed number of pipeline slots. Each job
// runs its registered steps sequentially: the manager moves the job into the
// step's status, runs Prepare and Execute with a heartbeat, maps step
// progress into the status band, and checks the cancel flag between steps.
// Failures are recorded verbatim on the job; completion publishes the result
// path.
//
// Per-job logs are written as JSON under <log_dir>/jobs/<id>.log in addition
// to the daemon log.
package workflow

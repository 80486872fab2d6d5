// Command dubber runs the dubbing daemon and talks to it over HTTP.
//
// "dubber serve" runs the daemon in the foreground; "dubber start" launches it
// detached. Every other job command (submit, status, jobs, result, cancel,
// remove, logs, voices) is a thin client over the daemon API.
package main

// Package joblog reads the per-job JSON log files written under
// <log_dir>/jobs. Reads are offset based so the API and `dubber logs
// --follow` can poll for new lines with bounded memory, and lines can be
// filtered by stage or minimum level without loading the whole file.
package joblog

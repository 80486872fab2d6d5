// Package ffprobe runs ffprobe and exposes the stream layout and duration of
// source and rendered media.
package ffprobe

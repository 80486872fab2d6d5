// Package ffmpeg wraps the ffmpeg invocations the pipeline needs: audio
// extraction, PCM decoding, tempo stretching, track encoding and the final
// audio stream replacement.
package ffmpeg

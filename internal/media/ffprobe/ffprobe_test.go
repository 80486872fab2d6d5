package ffprobe_test

import (
	"testing"

	"dubber/internal/media/ffprobe"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "duration": "20.020000"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "44100", "channels": 2, "duration": "19.990000", "tags": {"language": "eng"}},
    {"index": 2, "codec_type": "subtitle", "codec_name": "mov_text"}
  ],
  "format": {"filename": "in.mp4", "nb_streams": 3, "duration": "20.020000", "size": "1048576", "format_name": "mov,mp4"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := ffprobe.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 || result.SubtitleStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: %#v", result.Streams)
	}
	if !result.HasVideo() {
		t.Fatal("expected video")
	}
	if result.DurationSeconds() != 20.02 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1048576 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
	if result.Streams[1].Tags.Language != "eng" {
		t.Fatalf("expected language tag, got %q", result.Streams[1].Tags.Language)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio", Duration: "12.5"}, {CodecType: "video", Duration: "bad"}},
		Format:  ffprobe.Format{Duration: "N/A", Size: "-1"},
	}
	if result.DurationSeconds() != 12.5 {
		t.Fatalf("expected stream fallback 12.5, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.HasVideo() != true {
		t.Fatal("expected video stream counted")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ffprobe.Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

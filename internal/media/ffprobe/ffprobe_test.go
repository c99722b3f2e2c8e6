package ffprobe

import (
	"math"
	"testing"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "hevc", "codec_type": "video", "codec_tag_string": "hvc1",
     "pix_fmt": "yuv420p", "width": 1800, "height": 1200, "avg_frame_rate": "2/1", "nb_frames": "288"}
  ],
  "format": {"filename": "animation.mp4", "nb_streams": 1, "duration": "144.000000", "size": "5242880", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	video, ok := result.VideoStream()
	if !ok {
		t.Fatal("expected video stream")
	}
	if video.FrameCount() != 288 {
		t.Fatalf("unexpected frame count %d", video.FrameCount())
	}
	if video.FrameRate() != 2 {
		t.Fatalf("unexpected frame rate %v", video.FrameRate())
	}
	if result.DurationSeconds() != 144 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 5242880 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	stream := Stream{AvgFrameRate: "0/0", NBFrames: "N/A"}
	if stream.FrameRate() != 0 || stream.FrameCount() != 0 {
		t.Fatalf("expected zero values for unknown rate/frames, got %v/%d", stream.FrameRate(), stream.FrameCount())
	}
	if _, ok := result.VideoStream(); ok {
		t.Fatal("expected no video stream")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

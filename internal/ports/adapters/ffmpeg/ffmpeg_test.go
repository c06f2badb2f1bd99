package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	// respond decides the output for a call; nil means success with no output.
	respond func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(name, args)
}

func newTestAdapter(f *fakeRunner) *Adapter {
	a := New("", "")
	a.run = f.run
	return a
}

// writeOutput creates the last argument as a file, like ffmpeg would.
func writeOutput(t *testing.T, content string) func(string, []string) ([]byte, error) {
	return func(_ string, args []string) ([]byte, error) {
		out := args[len(args)-1]
		if idx := slices.Index(args, "-y"); idx == len(args)-1 {
			out = args[len(args)-2]
		}
		if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
			t.Fatalf("write fake output: %v", err)
		}
		return nil, nil
	}
}

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "width": 1920, "height": 1080},
    {"codec_type": "audio"}
  ],
  "format": {"duration": "120.500000"}
}`

func TestParseProbe(t *testing.T) {
	pr, err := parseProbe([]byte(probeJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pr.Duration != 120500*time.Millisecond {
		t.Fatalf("unexpected duration %v", pr.Duration)
	}
	if pr.Width != 1920 || pr.Height != 1080 || !pr.HasAudio {
		t.Fatalf("unexpected probe result %+v", pr)
	}
}

func TestParseProbe_FallsBackToStreamDuration(t *testing.T) {
	in := `{"streams":[{"codec_type":"video","width":640,"height":360,"duration":"12.0"}],"format":{"duration":"N/A"}}`
	pr, err := parseProbe([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pr.Duration != 12*time.Second || pr.HasAudio {
		t.Fatalf("unexpected probe result %+v", pr)
	}
}

func TestProbe_Unreadable(t *testing.T) {
	tests := map[string]func(string, []string) ([]byte, error){
		"exit error": func(string, []string) ([]byte, error) {
			return []byte("moov atom not found"), errors.New("exit status 1")
		},
		"no duration": func(string, []string) ([]byte, error) {
			return []byte(`{"streams":[],"format":{}}`), nil
		},
		"garbage": func(string, []string) ([]byte, error) {
			return []byte("not json"), nil
		},
	}
	for name, respond := range tests {
		t.Run(name, func(t *testing.T) {
			a := newTestAdapter(&fakeRunner{respond: respond})
			if _, err := a.Probe(context.Background(), "in.mp4"); !errors.Is(err, types.ErrMediaUnreadable) {
				t.Fatalf("expected ErrMediaUnreadable, got %v", err)
			}
		})
	}
}

func TestIsValid_ZeroByteFileSkipsDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp4")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := &fakeRunner{}
	a := newTestAdapter(f)
	if a.IsValid(context.Background(), path, true) {
		t.Fatalf("expected zero-byte file to be invalid")
	}
	if a.IsValid(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), false) {
		t.Fatalf("expected missing file to be invalid")
	}
	if len(f.calls) != 0 {
		t.Fatalf("expected no external calls, got %d", len(f.calls))
	}
}

func TestIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	noAudio := `{"streams":[{"codec_type":"video","width":1,"height":1}],"format":{"duration":"3"}}`

	tests := []struct {
		name         string
		probe        string
		decodeOut    string
		decodeErr    error
		requireAudio bool
		want         bool
	}{
		{name: "clean decode", probe: probeJSON, want: true, requireAudio: true},
		{name: "decode errors on stderr", probe: probeJSON, decodeOut: "error while decoding MB 3 4", want: false},
		{name: "decode exit status", probe: probeJSON, decodeErr: errors.New("exit status 1"), want: false},
		{name: "missing audio required", probe: noAudio, requireAudio: true, want: false},
		{name: "missing audio allowed", probe: noAudio, requireAudio: false, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(&fakeRunner{respond: func(name string, _ []string) ([]byte, error) {
				if name == "ffprobe" {
					return []byte(tt.probe), nil
				}
				return []byte(tt.decodeOut), tt.decodeErr
			}})
			if got := a.IsValid(context.Background(), path, tt.requireAudio); got != tt.want {
				t.Fatalf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncode_Args(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "001.mp4")
	w := types.ClipWindow{Start: 12500 * time.Millisecond, Length: 30 * time.Second}

	for _, aspect := range []types.Aspect{types.AspectOriginal, types.AspectVertical} {
		t.Run(string(aspect), func(t *testing.T) {
			f := &fakeRunner{}
			f.respond = writeOutput(t, "video")
			a := newTestAdapter(f)
			if err := a.Encode(context.Background(), "src.mp4", w, aspect, out); err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(f.calls) != 1 || f.calls[0].name != "ffmpeg" {
				t.Fatalf("unexpected calls: %+v", f.calls)
			}
			joined := strings.Join(f.calls[0].args, " ")
			if !strings.Contains(joined, "-ss 12.500") || !strings.Contains(joined, "-t 30.000") {
				t.Fatalf("expected window bounds in args, got %q", joined)
			}
			if strings.Index(joined, "-ss") > strings.Index(joined, "-i src.mp4") {
				t.Fatalf("expected input seeking before -i, got %q", joined)
			}
			hasCrop := strings.Contains(joined, verticalCrop)
			if hasCrop != (aspect == types.AspectVertical) {
				t.Fatalf("crop presence %v for aspect %s: %q", hasCrop, aspect, joined)
			}
		})
	}
}

func TestEncode_CropBeforeScale(t *testing.T) {
	a := New("", "").WithEncoding(Encoding{Scale: "720:1280"})
	if got := a.videoFilter(types.AspectVertical); got != "crop=trunc(ih*9/32)*2:ih,scale=720:1280" {
		t.Fatalf("unexpected filter %q", got)
	}
	if got := a.videoFilter(types.AspectOriginal); got != "scale=720:1280" {
		t.Fatalf("unexpected filter %q", got)
	}
}

func TestEncode_FailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "002.mp4")
	f := &fakeRunner{respond: func(_ string, args []string) ([]byte, error) {
		_ = os.WriteFile(out, []byte("partial"), 0o644)
		return []byte("Conversion failed!"), errors.New("exit status 1")
	}}
	a := newTestAdapter(f)
	err := a.Encode(context.Background(), "src.mp4", types.ClipWindow{Length: time.Second}, types.AspectOriginal, out)
	if !errors.Is(err, types.ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial output removed, stat err=%v", statErr)
	}
}

func TestEncode_ZeroSizeOutputFails(t *testing.T) {
	out := filepath.Join(t.TempDir(), "003.mp4")
	f := &fakeRunner{}
	f.respond = writeOutput(t, "")
	err := newTestAdapter(f).Encode(context.Background(), "src.mp4", types.ClipWindow{Length: time.Second}, types.AspectOriginal, out)
	if !errors.Is(err, types.ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", err)
	}
}

func TestBurn_EmptyTrackIsPassthrough(t *testing.T) {
	dir := t.TempDir()
	f := &fakeRunner{}
	a := newTestAdapter(f)
	sub := filepath.Join(dir, "001.srt")
	got, err := a.Burn(context.Background(), "clips/001.mp4", types.SubtitleTrack{}, sub, filepath.Join(dir, "001_captioned.mp4"))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got != "clips/001.mp4" {
		t.Fatalf("expected input path back, got %q", got)
	}
	if len(f.calls) != 0 {
		t.Fatalf("expected no ffmpeg call, got %d", len(f.calls))
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Fatalf("expected no subtitle file, stat err=%v", err)
	}
}

func TestBurn_WritesSRTAndUsesAlignment(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "001.srt")
	out := filepath.Join(dir, "001_captioned.mp4")
	track := types.SubtitleTrack{Cues: []types.Cue{{Index: 1, Start: 5 * time.Second, End: 7 * time.Second, Text: "hello"}}}

	f := &fakeRunner{}
	f.respond = writeOutput(t, "video")
	style := DefaultCaptionStyle()
	style.Position = "middle"
	a := newTestAdapter(f).WithCaptionStyle(style)

	got, err := a.Burn(context.Background(), "in.mp4", track, sub, out)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got != out {
		t.Fatalf("expected %q, got %q", out, got)
	}
	b, err := os.ReadFile(sub)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if string(b) != "1\n00:00:05,000 --> 00:00:07,000\nhello\n\n" {
		t.Fatalf("unexpected srt %q", b)
	}
	joined := strings.Join(f.calls[0].args, " ")
	if !strings.Contains(joined, "force_style='Alignment=5") {
		t.Fatalf("expected middle alignment in filter, got %q", joined)
	}
}

func TestBurn_FailureIsBurnFailed(t *testing.T) {
	dir := t.TempDir()
	track := types.SubtitleTrack{Cues: []types.Cue{{Index: 1, Start: 0, End: time.Second, Text: "x"}}}
	f := &fakeRunner{respond: func(string, []string) ([]byte, error) {
		return []byte("Unable to open subtitles"), errors.New("exit status 1")
	}}
	_, err := newTestAdapter(f).Burn(context.Background(), "in.mp4", track, filepath.Join(dir, "1.ass"), filepath.Join(dir, "o.mp4"))
	if !errors.Is(err, types.ErrBurnFailed) {
		t.Fatalf("expected ErrBurnFailed, got %v", err)
	}
	b, readErr := os.ReadFile(filepath.Join(dir, "1.ass"))
	if readErr != nil || !strings.Contains(string(b), "[Events]") {
		t.Fatalf("expected ASS script written, err=%v", readErr)
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath(`C:\subs\it's.srt`)
	want := `C\:\\subs\\it\'s.srt`
	if got != want {
		t.Fatalf("escapeFilterPath() = %q, want %q", got, want)
	}
}

package subtitles

import (
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

func TestFormatSRT_Layout(t *testing.T) {
	track := types.SubtitleTrack{Cues: []types.Cue{
		{Index: 1, Start: 5 * time.Second, End: 7 * time.Second, Text: "hello"},
		{Index: 2, Start: time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond, End: time.Hour + 2*time.Minute + 4*time.Second, Text: "later"},
	}}
	want := "1\n00:00:05,000 --> 00:00:07,000\nhello\n\n" +
		"2\n01:02:03,045 --> 01:02:04,000\nlater\n\n"
	if got := string(FormatSRT(track)); got != want {
		t.Fatalf("unexpected srt:\n%q\nwant:\n%q", got, want)
	}
}

func TestSRT_RoundTrip(t *testing.T) {
	track := types.SubtitleTrack{Cues: []types.Cue{
		{Index: 1, Start: 0, End: 1500 * time.Millisecond, Text: "first"},
		{Index: 2, Start: 1500 * time.Millisecond, End: 3*time.Second + 999*time.Millisecond, Text: "two\nlines"},
		{Index: 3, Start: 59*time.Minute + 59*time.Second + 1*time.Millisecond, End: 2 * time.Hour, Text: "last one"},
	}}
	got, err := ParseSRT(FormatSRT(track))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Cues) != len(track.Cues) {
		t.Fatalf("expected %d cues, got %d", len(track.Cues), len(got.Cues))
	}
	for i := range track.Cues {
		if got.Cues[i] != track.Cues[i] {
			t.Fatalf("cue %d: expected %+v, got %+v", i, track.Cues[i], got.Cues[i])
		}
	}
}

func TestSRT_RoundTripOfBuiltTrack(t *testing.T) {
	tr := types.Transcript{Segments: []types.Segment{
		{Start: 95.25, End: 97.5, Text: "hello"},
		{Start: 98, End: 99.125, Text: "world"},
	}}
	built, err := Build(tr, types.ClipWindow{Start: 90 * time.Second, Length: 30 * time.Second}, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parsed, err := ParseSRT(FormatSRT(built))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := range built.Cues {
		if parsed.Cues[i] != built.Cues[i] {
			t.Fatalf("cue %d: expected %+v, got %+v", i, built.Cues[i], parsed.Cues[i])
		}
	}
}

func TestParseSRT_ToleratesCRLFAndBOM(t *testing.T) {
	in := "\xef\xbb\xbf1\r\n00:00:01.000 --> 00:00:02,500 X1:10\r\nhi\r\n\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nthere"
	got, err := ParseSRT([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Cues) != 2 {
		t.Fatalf("expected 2 cues, got %+v", got.Cues)
	}
	if got.Cues[0].End != 2500*time.Millisecond || got.Cues[1].Text != "there" {
		t.Fatalf("unexpected cues: %+v", got.Cues)
	}
}

func TestParseSRT_Errors(t *testing.T) {
	tests := map[string]string{
		"bad index":   "x\n00:00:01,000 --> 00:00:02,000\nhi\n",
		"bad range":   "1\n00:00:01,000 00:00:02,000\nhi\n",
		"bad time":    "1\n00:61:01,000 --> 00:00:02,000\nhi\n",
		"no range":    "1\n",
		"garbage end": "1\n00:00:01,000 -->\nhi\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSRT([]byte(in)); err == nil {
				t.Fatalf("expected error for %q", in)
			} else if !strings.Contains(err.Error(), "srt line") {
				t.Fatalf("expected line context, got %v", err)
			}
		})
	}
}

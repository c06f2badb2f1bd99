package types

import (
	"testing"
	"time"
)

func TestTranscriptWithin(t *testing.T) {
	w := ClipWindow{Start: 30 * time.Second, Length: 20 * time.Second}
	tr := Transcript{Origin: OriginSource, Text: "whole source", Segments: []Segment{
		{Start: 0, End: 10, Text: "intro"},
		{Start: 25, End: 35, Text: "crossing in", Words: []Word{
			{Start: 25, End: 29, Word: " crossing"},
			{Start: 31, End: 35, Word: " in"},
		}},
		{Start: 40, End: 45, Text: "middle"},
		{Start: 50, End: 60, Text: "after"},
	}}

	got := tr.Within(w)
	if got.Text != "" || len(got.Segments) != 2 {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if s := got.Segments[0]; s.Text != "in" || s.Start != 31 || s.End != 35 || len(s.Words) != 1 {
		t.Fatalf("boundary segment not trimmed to its words: %+v", s)
	}
	if got.PlainText() != "in middle" {
		t.Fatalf("unexpected text %q", got.PlainText())
	}
	if len(tr.Segments) != 4 || tr.Segments[1].Text != "crossing in" {
		t.Fatalf("receiver modified: %+v", tr.Segments)
	}

	clip := Transcript{Origin: OriginClip, Segments: tr.Segments}
	if got := clip.Within(w); len(got.Segments) != 4 {
		t.Fatalf("clip-relative transcript must be untouched, got %+v", got)
	}
	flat := Transcript{Origin: OriginSource, Text: "no timing"}
	if got := flat.Within(w); got.Text != "no timing" {
		t.Fatalf("flat transcript must be untouched, got %+v", got)
	}
}

package subtitles

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

// Build converts a transcript into a clip-local subtitle track for window w.
//
// A transcript without segments yields one cue spanning the whole clip. Segmented
// transcripts are shifted by w.Start when sourceRelative is set, clamped to
// [0, w.Length], and re-indexed from 1 after out-of-range segments are dropped.
func Build(tr types.Transcript, w types.ClipWindow, sourceRelative bool) (types.SubtitleTrack, error) {
	if w.Length <= 0 {
		return types.SubtitleTrack{}, fmt.Errorf("clip window length must be > 0, got %s", w.Length)
	}
	if tr.Unavailable() || strings.TrimSpace(tr.PlainText()) == "" {
		return types.SubtitleTrack{}, types.ErrEmptyTranscript
	}

	if len(tr.Segments) == 0 {
		return types.SubtitleTrack{Cues: []types.Cue{{
			Index: 1,
			Start: 0,
			End:   w.Length,
			Text:  normalizeText(tr.Text),
		}}}, nil
	}

	var offset time.Duration
	if sourceRelative {
		offset = w.Start
	}

	cues := make([]types.Cue, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		text := normalizeText(s.Text)
		if text == "" {
			continue
		}
		start := dur(s.Start) - offset
		end := dur(s.End) - offset
		if end <= 0 || start >= w.Length {
			continue
		}
		if start < 0 {
			start = 0
		}
		if end > w.Length {
			end = w.Length
		}
		if end <= start {
			continue
		}
		cues = append(cues, types.Cue{Start: start, End: end, Text: text})
	}

	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })

	out := cues[:0]
	for _, c := range cues {
		if n := len(out); n > 0 && out[n-1].End > c.Start {
			out[n-1].End = c.Start
			if out[n-1].End <= out[n-1].Start {
				out = out[:n-1]
			}
		}
		out = append(out, c)
	}
	for i := range out {
		out[i].Index = i + 1
	}
	return types.SubtitleTrack{Cues: out}, nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }

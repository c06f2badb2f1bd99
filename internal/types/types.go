package types

import (
	"strings"
	"time"
)

// SourceVideo is the acquired input of a run. Duration is zero until probed.
type SourceVideo struct {
	ID          string        `json:"id"`
	Path        string        `json:"path"`
	Description string        `json:"description,omitempty"`
	Title       string        `json:"title,omitempty"`
	ExternalID  string        `json:"external_id,omitempty"`
	Duration    time.Duration `json:"-"`
	Readable    bool          `json:"-"`
}

type Aspect string

const (
	AspectOriginal Aspect = "original"
	AspectVertical Aspect = "vertical"
)

func (a Aspect) Valid() bool {
	return a == AspectOriginal || a == AspectVertical
}

// ClipWindow is a candidate sub-interval of the source. Start+Length never exceeds the probed duration.
type ClipWindow struct {
	Start  time.Duration
	Length time.Duration
}

func (w ClipWindow) End() time.Duration { return w.Start + w.Length }

type ClipArtifact struct {
	ID     string
	Window ClipWindow
	Path   string
	Aspect Aspect
	Valid  bool
}

type ProbeResult struct {
	Duration time.Duration
	Width    int
	Height   int
	HasAudio bool
}

// Origin tells which input the transcript offsets are measured against.
type Origin string

const (
	OriginClip   Origin = "clip"
	OriginSource Origin = "source"
)

// UnavailableText replaces the transcript when every provider failed.
const UnavailableText = "transcription unavailable"

type Transcript struct {
	Provider string    `json:"provider,omitempty"`
	Language string    `json:"language,omitempty"`
	Origin   Origin    `json:"origin,omitempty"`
	Text     string    `json:"text,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

func UnavailableTranscript() Transcript {
	return Transcript{Origin: OriginClip, Text: UnavailableText}
}

// Unavailable reports whether the transcript is the sentinel produced on provider failure.
func (t Transcript) Unavailable() bool {
	return len(t.Segments) == 0 && t.Text == UnavailableText
}

// PlainText joins segment texts, or returns Text for flat transcripts.
func (t Transcript) PlainText() string {
	if len(t.Segments) == 0 {
		return t.Text
	}
	var out []byte
	for _, s := range t.Segments {
		if s.Text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, s.Text...)
	}
	return string(out)
}

// Within narrows a source-relative transcript to the segments overlapping w.
// Offsets stay source-relative; word-timed segments keep only the overlapping
// words. Clip-relative and flat transcripts are returned unchanged.
func (t Transcript) Within(w ClipWindow) Transcript {
	if t.Origin != OriginSource || len(t.Segments) == 0 {
		return t
	}
	start, end := w.Start.Seconds(), w.End().Seconds()
	out := t
	out.Text = ""
	out.Segments = nil
	for _, s := range t.Segments {
		if s.End <= start || s.Start >= end {
			continue
		}
		if len(s.Words) > 0 {
			s = s.wordsWithin(start, end)
			if len(s.Words) == 0 {
				continue
			}
		}
		out.Segments = append(out.Segments, s)
	}
	return out
}

func (s Segment) wordsWithin(start, end float64) Segment {
	var words []Word
	texts := make([]string, 0, len(s.Words))
	for _, w := range s.Words {
		if w.End <= start || w.Start >= end {
			continue
		}
		words = append(words, w)
		texts = append(texts, strings.TrimSpace(w.Word))
	}
	if len(words) == len(s.Words) {
		return s
	}
	s.Words = words
	s.Text = strings.Join(texts, " ")
	if len(words) > 0 {
		s.Start = max(s.Start, words[0].Start)
		s.End = min(s.End, words[len(words)-1].End)
	}
	return s
}

type InputKind string

const (
	// InputAudio is mono 16 kHz 16-bit PCM WAV.
	InputAudio InputKind = "audio"
	InputMedia InputKind = "media"
	InputNone  InputKind = "none"
)

type TranscribeRequest struct {
	AudioPath  string
	MediaPath  string
	Language   string
	ExternalID string
	Window     ClipWindow
}

type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// SubtitleTrack holds clip-local cues ordered by Start with Start < End and no overlaps.
type SubtitleTrack struct {
	Cues []Cue
}

func (t SubtitleTrack) Empty() bool { return len(t.Cues) == 0 }

type Metadata struct {
	Title    string
	Hashtags []string
}

type Manifest struct {
	Input   string         `json:"input"`
	Source  SourceVideo    `json:"source"`
	Clips   []ManifestClip `json:"clips"`
	Dropped []ClipReport   `json:"dropped,omitempty"`
}

type ManifestClip struct {
	ID           string   `json:"id"`
	StartSec     float64  `json:"start_sec"`
	EndSec       float64  `json:"end_sec"`
	File         string   `json:"file"`
	Captioned    bool     `json:"captioned"`
	Subtitles    string   `json:"subtitles,omitempty"`
	Thumbnail    string   `json:"thumbnail,omitempty"`
	DownloadName string   `json:"download_name"`
	Title        string   `json:"title"`
	Hashtags     []string `json:"hashtags"`
	Transcript   string   `json:"transcript"`
	Warnings     []string `json:"warnings,omitempty"`
	RemoteURL    string   `json:"remote_url,omitempty"`
}

package googlespeech

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/speech/v1"

	"github.com/forPelevin/clipforge/internal/types"
)

const (
	Name            = "googlespeech"
	defaultLanguage = "en-US"
	// Synchronous recognition rejects requests above 10 MB of inline audio
	// or longer than one minute.
	maxInlineBytes = 10 << 20
	maxSyncAudio   = time.Minute
	// 16 kHz mono LINEAR16 after the canonical 44-byte WAV header.
	wavHeaderBytes = 44
	bytesPerSecond = 16000 * 2
)

type Adapter struct {
	svc *speech.Service
}

// New builds a client; with an empty apiKey the ambient Google credentials are used.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Adapter, error) {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech service: %w", err)
	}
	return &Adapter{svc: svc}, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Input() types.InputKind { return types.InputAudio }

func (a *Adapter) Transcribe(ctx context.Context, req types.TranscribeRequest) (types.Transcript, error) {
	b, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read audio: %w", err)
	}
	if len(b) > maxInlineBytes {
		return types.Transcript{}, fmt.Errorf("%w: google speech: audio is %d bytes, limit is %d", types.ErrTranscriptionUnavailable, len(b), maxInlineBytes)
	}
	if d := audioDuration(len(b)); d > maxSyncAudio {
		return types.Transcript{}, fmt.Errorf("%w: google speech: audio is %s, synchronous limit is %s", types.ErrTranscriptionUnavailable, d.Round(time.Millisecond), maxSyncAudio)
	}
	lang := req.Language
	if lang == "" {
		lang = defaultLanguage
	}

	resp, err := a.svc.Speech.Recognize(&speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			LanguageCode:               lang,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speech.RecognitionAudio{Content: base64.StdEncoding.EncodeToString(b)},
	}).Context(ctx).Do()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("google speech recognize: %w", err)
	}
	return toTranscript(resp, lang), nil
}

func audioDuration(size int) time.Duration {
	pcm := max(size-wavHeaderBytes, 0)
	return time.Duration(pcm) * time.Second / bytesPerSecond
}

// toTranscript keeps the best alternative of every result. Results carrying word
// offsets become segments; otherwise the transcript stays flat.
func toTranscript(resp *speech.RecognizeResponse, lang string) types.Transcript {
	tr := types.Transcript{Provider: Name, Language: lang, Origin: types.OriginClip}
	var (
		texts []string
		segs  []types.Segment
		timed = true
	)
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		texts = append(texts, text)

		seg, ok := segmentFromWords(text, alt.Words)
		if !ok {
			timed = false
			continue
		}
		segs = append(segs, seg)
	}
	tr.Text = strings.Join(texts, " ")
	if timed && len(segs) > 0 {
		tr.Segments = segs
	}
	return tr
}

func segmentFromWords(text string, words []*speech.WordInfo) (types.Segment, bool) {
	seg := types.Segment{Text: text}
	for _, w := range words {
		if w == nil {
			continue
		}
		st, err1 := parseOffset(w.StartTime)
		en, err2 := parseOffset(w.EndTime)
		if err1 != nil || err2 != nil {
			return types.Segment{}, false
		}
		seg.Words = append(seg.Words, types.Word{Start: st, End: en, Word: w.Word})
	}
	if len(seg.Words) == 0 {
		return types.Segment{}, false
	}
	seg.Start = seg.Words[0].Start
	seg.End = seg.Words[len(seg.Words)-1].End
	return seg, seg.End > seg.Start
}

// parseOffset reads protobuf Duration JSON such as "1.500s".
func parseOffset(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

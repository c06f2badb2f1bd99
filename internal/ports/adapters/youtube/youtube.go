package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/types"
)

const Name = "youtube"

var ErrNoCaptions = errors.New("youtube: no caption track")

// Adapter serves platform caption tracks as source-relative transcripts.
// Tracks are fetched once per video and shared by every clip of the run.
type Adapter struct {
	svc *yt.Service

	mu    sync.Mutex
	cache map[string]types.Transcript
}

// New authenticates with a service account file when one is given.
func New(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*Adapter, error) {
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read youtube credentials: %w", err)
		}
		cfg, err := google.JWTConfigFromJSON(data, yt.YoutubeForceSslScope)
		if err != nil {
			return nil, fmt.Errorf("parse youtube credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(cfg.Client(ctx)))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Adapter{svc: svc, cache: map[string]types.Transcript{}}, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Input() types.InputKind { return types.InputNone }

func (a *Adapter) Transcribe(ctx context.Context, req types.TranscribeRequest) (types.Transcript, error) {
	if req.ExternalID == "" {
		return types.Transcript{}, fmt.Errorf("youtube: source has no video id")
	}
	key := req.ExternalID + "|" + req.Language

	a.mu.Lock()
	defer a.mu.Unlock()
	if tr, ok := a.cache[key]; ok {
		return tr, nil
	}
	tr, err := a.fetch(ctx, req.ExternalID, req.Language)
	if err != nil {
		return types.Transcript{}, err
	}
	a.cache[key] = tr
	return tr, nil
}

func (a *Adapter) fetch(ctx context.Context, videoID, lang string) (types.Transcript, error) {
	list, err := a.svc.Captions.List([]string{"snippet"}, videoID).Context(ctx).Do()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("youtube captions list: %w", err)
	}
	track := pickTrack(list.Items, lang)
	if track == nil {
		return types.Transcript{}, fmt.Errorf("%w for video %s", ErrNoCaptions, videoID)
	}

	resp, err := a.svc.Captions.Download(track.Id).Tfmt("srt").Context(ctx).Download()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("youtube caption download: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read caption track: %w", err)
	}

	parsed, err := subtitles.ParseSRT(b)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("parse caption track: %w", err)
	}
	tr := types.Transcript{Provider: Name, Origin: types.OriginSource, Language: track.Snippet.Language}
	var texts []string
	for _, c := range parsed.Cues {
		text := strings.Join(strings.Fields(c.Text), " ")
		if text == "" {
			continue
		}
		texts = append(texts, text)
		tr.Segments = append(tr.Segments, types.Segment{Start: c.Start.Seconds(), End: c.End.Seconds(), Text: text})
	}
	tr.Text = strings.Join(texts, " ")
	return tr, nil
}

// pickTrack prefers the requested language, then human-made tracks over ASR ones.
func pickTrack(items []*yt.Caption, lang string) *yt.Caption {
	lang = strings.ToLower(lang)
	var best *yt.Caption
	bestScore := -1
	for _, c := range items {
		if c == nil || c.Snippet == nil {
			continue
		}
		score := 0
		cl := strings.ToLower(c.Snippet.Language)
		switch {
		case lang == "":
		case cl == lang:
			score += 4
		case strings.SplitN(cl, "-", 2)[0] == strings.SplitN(lang, "-", 2)[0]:
			score += 3
		}
		if !strings.EqualFold(c.Snippet.TrackKind, "asr") {
			score++
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

package ports

import (
	"context"

	"github.com/forPelevin/clipforge/internal/types"
)

// VideoSource turns a user-supplied identifier into a local, seekable media file.
type VideoSource interface {
	Fetch(ctx context.Context, identifier, workDir string) (types.SourceVideo, error)
}

type Prober interface {
	Probe(ctx context.Context, path string) (types.ProbeResult, error)
}

// Validator never fails: every problem maps to false.
type Validator interface {
	IsValid(ctx context.Context, path string, requireAudio bool) bool
}

type Encoder interface {
	Encode(ctx context.Context, src string, w types.ClipWindow, aspect types.Aspect, outPath string) error
}

type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inPath, outWav string) error
}

type Transcriber interface {
	Name() string
	Input() types.InputKind
	Transcribe(ctx context.Context, req types.TranscribeRequest) (types.Transcript, error)
}

type CaptionBurner interface {
	Burn(ctx context.Context, clipPath string, track types.SubtitleTrack, subPath, outPath string) (string, error)
}

type Thumbnailer interface {
	Thumbnail(ctx context.Context, clipPath, outJPG string) error
}

// Titler suggests clip metadata; implementations fall back to deterministic rules.
type Titler interface {
	Suggest(ctx context.Context, clipID string, tr types.Transcript) types.Metadata
}

// Publisher copies a finished artifact somewhere durable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, key string) (string, error)
}

// ResultSink receives one event per published clip.
type ResultSink interface {
	Emit(ctx context.Context, runID string, clip types.ManifestClip) error
	Close() error
}

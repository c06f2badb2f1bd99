package types

import "time"

// ClipState is a step of the per-clip lifecycle. States are only ever entered in order.
type ClipState string

const (
	StateSampled     ClipState = "sampled"
	StateEncoded     ClipState = "encoded"
	StateValidated   ClipState = "validated"
	StateTranscribed ClipState = "transcribed"
	StateCaptioned   ClipState = "captioned"
	StatePublished   ClipState = "published"
	StateDropped     ClipState = "dropped"
)

type Stage string

const (
	StageEncode     Stage = "encode"
	StageValidate   Stage = "validate"
	StageAudio      Stage = "audio"
	StageTranscribe Stage = "transcribe"
	StageSubtitles  Stage = "subtitles"
	StageBurn       Stage = "burn"
	StageThumbnail  Stage = "thumbnail"
	StageMetadata   Stage = "metadata"
	StagePublish    Stage = "publish"
)

// ClipEvent is one progress update emitted by a clip pipeline.
type ClipEvent struct {
	ClipID string
	State  ClipState
	Stage  Stage
	Err    error
	At     time.Time
}

// ClipReport describes a dropped or degraded clip.
type ClipReport struct {
	ClipID string    `json:"clip_id"`
	State  ClipState `json:"state"`
	Stage  Stage     `json:"stage"`
	Reason string    `json:"reason"`
}

// ClipResult is the published, read-only outcome of one clip.
type ClipResult struct {
	ID            string
	Window        ClipWindow
	Path          string
	EncodedPath   string
	Captioned     bool
	SubtitlesPath string
	ThumbnailPath string
	DownloadName  string
	Metadata      Metadata
	Transcript    Transcript
	Warnings      []*StageError
	RemoteURL     string
}

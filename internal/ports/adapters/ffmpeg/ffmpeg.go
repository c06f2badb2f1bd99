package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Encoding holds codec settings shared by every re-encoding command.
type Encoding struct {
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string

	// Scale is an optional "W:H" applied after cropping.
	Scale string
}

func DefaultEncoding() Encoding {
	return Encoding{
		VideoCodec:   "libx264",
		Preset:       "veryfast",
		CRF:          18,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

type Adapter struct {
	ffmpeg  string
	ffprobe string
	enc     Encoding
	style   CaptionStyle
	run     runner
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		enc:     DefaultEncoding(),
		style:   DefaultCaptionStyle(),
		run:     execRunner,
	}
}

func (a *Adapter) WithEncoding(e Encoding) *Adapter {
	d := DefaultEncoding()
	if e.VideoCodec == "" {
		e.VideoCodec = d.VideoCodec
	}
	if e.Preset == "" {
		e.Preset = d.Preset
	}
	if e.CRF <= 0 {
		e.CRF = d.CRF
	}
	if e.AudioCodec == "" {
		e.AudioCodec = d.AudioCodec
	}
	if e.AudioBitrate == "" {
		e.AudioBitrate = d.AudioBitrate
	}
	a.enc = e
	return a
}

func (a *Adapter) WithCaptionStyle(s CaptionStyle) *Adapter {
	a.style = s
	return a
}

// args renders an ffmpeg-go stream into a plain argument list so the command
// still runs under our context.
func args(s *ffmpeggo.Stream) []string {
	return s.OverWriteOutput().GetArgs()
}

func (a *Adapter) codecArgs() ffmpeggo.KwArgs {
	return ffmpeggo.KwArgs{
		"c:v":    a.enc.VideoCodec,
		"preset": a.enc.Preset,
		"crf":    a.enc.CRF,
		"c:a":    a.enc.AudioCodec,
		"b:a":    a.enc.AudioBitrate,
	}
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}

func nonEmptyFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}

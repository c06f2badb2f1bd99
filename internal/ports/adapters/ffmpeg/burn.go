package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/types"
)

type CaptionStyle = subtitles.Style

func DefaultCaptionStyle() CaptionStyle { return subtitles.DefaultStyle() }

// Burn writes track to subPath (SRT, or ASS when subPath ends in .ass) and
// renders it onto the clip. An empty track is a passthrough: no file, no ffmpeg call.
func (a *Adapter) Burn(ctx context.Context, clipPath string, track types.SubtitleTrack, subPath, outPath string) (string, error) {
	if track.Empty() {
		return clipPath, nil
	}

	var data []byte
	isASS := strings.EqualFold(filepath.Ext(subPath), ".ass")
	if isASS {
		data = []byte(subtitles.RenderASS(track, a.style))
	} else {
		data = subtitles.FormatSRT(track)
	}
	if err := os.WriteFile(subPath, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write subtitles: %v", types.ErrBurnFailed, err)
	}

	out := a.codecArgs()
	out["vf"] = a.subtitleFilter(subPath, isASS)
	out["c:a"] = "copy"
	delete(out, "b:a")

	b, err := a.run(ctx, a.ffmpeg, args(ffmpeggo.Input(clipPath).Output(outPath, out))...)
	if err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("%w: ffmpeg burn: %v\n%s", types.ErrBurnFailed, err, string(b))
	}
	if !nonEmptyFile(outPath) {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("%w: empty output %s", types.ErrBurnFailed, outPath)
	}
	return outPath, nil
}

func (a *Adapter) subtitleFilter(subPath string, isASS bool) string {
	f := "subtitles=" + escapeFilterPath(filepath.ToSlash(subPath))
	if isASS {
		return f
	}
	return fmt.Sprintf("%s:force_style='Alignment=%d,FontName=%s,FontSize=%d'",
		f, a.style.Position.Alignment(), a.style.FontName, srtFontSize(a.style))
}

// srtFontSize scales the ASS font size down to libass's default 384x288 SRT canvas.
func srtFontSize(st CaptionStyle) int {
	if st.PlayResY <= 0 {
		return st.FontSize
	}
	size := st.FontSize * 288 / st.PlayResY
	if size < 8 {
		size = 8
	}
	return size
}

package ffmpeg

import (
	"context"
	"fmt"
	"os"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/forPelevin/clipforge/internal/types"
)

// verticalCrop keeps the width even for yuv420p encoders.
const verticalCrop = "crop=trunc(ih*9/32)*2:ih"

func (a *Adapter) Encode(ctx context.Context, src string, w types.ClipWindow, aspect types.Aspect, outPath string) error {
	if w.Length <= 0 {
		return fmt.Errorf("%w: window length must be > 0", types.ErrEncodeFailed)
	}
	b, err := a.run(ctx, a.ffmpeg, a.encodeArgs(src, w, aspect, outPath)...)
	if err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("%w: ffmpeg encode: %v\n%s", types.ErrEncodeFailed, err, string(b))
	}
	if !nonEmptyFile(outPath) {
		_ = os.Remove(outPath)
		return fmt.Errorf("%w: empty output %s", types.ErrEncodeFailed, outPath)
	}
	return nil
}

func (a *Adapter) encodeArgs(src string, w types.ClipWindow, aspect types.Aspect, outPath string) []string {
	out := a.codecArgs()
	if vf := a.videoFilter(aspect); vf != "" {
		out["vf"] = vf
	}
	in := ffmpeggo.KwArgs{
		"ss": fmtSeconds(w.Start),
		"t":  fmtSeconds(w.Length),
	}
	return args(ffmpeggo.Input(src, in).Output(outPath, out))
}

// videoFilter crops before scaling.
func (a *Adapter) videoFilter(aspect types.Aspect) string {
	var vf string
	if aspect == types.AspectVertical {
		vf = verticalCrop
	}
	if a.enc.Scale != "" {
		if vf != "" {
			vf += ","
		}
		vf += "scale=" + a.enc.Scale
	}
	return vf
}

package ffmpeg

import (
	"context"
	"fmt"
	"os"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

func (a *Adapter) Thumbnail(ctx context.Context, clipPath, outJPG string) error {
	cmd := args(ffmpeggo.Input(clipPath, ffmpeggo.KwArgs{"ss": "0"}).Output(outJPG, ffmpeggo.KwArgs{
		"vframes": 1,
		"q:v":     2,
	}))
	b, err := a.run(ctx, a.ffmpeg, cmd...)
	if err != nil {
		_ = os.Remove(outJPG)
		return fmt.Errorf("ffmpeg thumbnail: %w\n%s", err, string(b))
	}
	if !nonEmptyFile(outJPG) {
		return fmt.Errorf("ffmpeg thumbnail: no image written to %s", outJPG)
	}
	return nil
}

package ffmpeg

import (
	"context"
	"fmt"
	"os"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inPath, outWav string) error {
	cmd := args(ffmpeggo.Input(inPath).Output(outWav, ffmpeggo.KwArgs{
		"vn":  "",
		"ac":  1,
		"ar":  16000,
		"c:a": "pcm_s16le",
		"f":   "wav",
	}))
	b, err := a.run(ctx, a.ffmpeg, cmd...)
	if err != nil {
		_ = os.Remove(outWav)
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

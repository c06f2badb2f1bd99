package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
		Duration  string `json:"duration,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (a *Adapter) Probe(ctx context.Context, path string) (types.ProbeResult, error) {
	b, err := a.run(ctx, a.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("%w: ffprobe %s: %v\n%s", types.ErrMediaUnreadable, path, err, string(b))
	}
	return parseProbe(b)
}

func parseProbe(b []byte) (types.ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.ProbeResult{}, fmt.Errorf("%w: parse ffprobe output: %v", types.ErrMediaUnreadable, err)
	}

	var res types.ProbeResult
	raw := out.Format.Duration
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if res.Width == 0 {
				res.Width, res.Height = s.Width, s.Height
			}
			if raw == "" || raw == "N/A" {
				raw = s.Duration
			}
		case "audio":
			res.HasAudio = true
		}
	}
	sec, err := strconv.ParseFloat(raw, 64)
	if err != nil || sec <= 0 {
		return types.ProbeResult{}, fmt.Errorf("%w: duration %q not available", types.ErrMediaUnreadable, raw)
	}
	res.Duration = time.Duration(sec * float64(time.Second))
	return res, nil
}

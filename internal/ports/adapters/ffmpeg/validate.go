package ffmpeg

import (
	"context"
	"strings"
)

// IsValid decodes the whole file and reports false on any error output,
// zero-byte files, or a missing audio stream when requireAudio is set.
func (a *Adapter) IsValid(ctx context.Context, path string, requireAudio bool) bool {
	if !nonEmptyFile(path) {
		return false
	}
	pr, err := a.Probe(ctx, path)
	if err != nil {
		return false
	}
	if requireAudio && !pr.HasAudio {
		return false
	}
	b, err := a.run(ctx, a.ffmpeg, "-v", "error", "-i", path, "-f", "null", "-")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(b)) == ""
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/forPelevin/clipforge/internal/types"
)

// YTDLP downloads platform videos (YouTube, TikTok, Instagram, ...) with yt-dlp.
type YTDLP struct {
	bin    string
	format string
	run    func(ctx context.Context, name string, args ...string) ([]byte, error)
}

const defaultFormat = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b"

func NewYTDLP(bin string) *YTDLP {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YTDLP{bin: bin, format: defaultFormat, run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}}
}

// WithFormat overrides the yt-dlp format selector; empty keeps the default.
func (y *YTDLP) WithFormat(f string) *YTDLP {
	if f != "" {
		y.format = f
	}
	return y
}

type infoJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Extractor   string  `json:"extractor_key"`
	Duration    float64 `json:"duration"`
}

// Fetch downloads into a private directory and renames the results into
// workDir, so runs sharing a source never see each other's partial files.
func (y *YTDLP) Fetch(ctx context.Context, identifier, workDir string) (types.SourceVideo, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return types.SourceVideo{}, err
	}
	tmp, err := os.MkdirTemp(workDir, "download-")
	if err != nil {
		return types.SourceVideo{}, err
	}
	defer os.RemoveAll(tmp)

	tmpBase := filepath.Join(tmp, "source")
	b, err := y.run(ctx, y.bin,
		"--no-playlist",
		"--no-progress",
		"-f", y.format,
		"--merge-output-format", "mp4",
		"--write-info-json",
		"--force-overwrites",
		"-o", tmpBase+".%(ext)s",
		identifier,
	)
	if err != nil {
		return types.SourceVideo{}, fmt.Errorf("yt-dlp: %w\n%s", err, string(b))
	}
	if _, err := os.Stat(tmpBase + ".mp4"); err != nil {
		return types.SourceVideo{}, fmt.Errorf("yt-dlp produced no mp4: %w", err)
	}

	base := filepath.Join(workDir, "source")
	out := base + ".mp4"
	if err := os.Rename(tmpBase+".mp4", out); err != nil {
		return types.SourceVideo{}, err
	}
	sv := types.SourceVideo{ID: identifier, Path: out}
	ib, err := os.ReadFile(tmpBase + ".info.json")
	if err != nil {
		return sv, nil
	}
	_ = os.WriteFile(base+".info.json", ib, 0o644)
	var info infoJSON
	if json.Unmarshal(ib, &info) == nil {
		sv.Title = info.Title
		sv.Description = info.Description
		if info.Extractor == "Youtube" {
			sv.ExternalID = info.ID
		}
	}
	return sv, nil
}

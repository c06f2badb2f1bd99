//go:build integration

package itest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
)

type mediaInfo struct {
	Duration float64
	Width    int
	Height   int
	HasAudio bool
}

func probeMedia(path string) (mediaInfo, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,width,height",
		"-of", "json",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return mediaInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	var raw struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return mediaInfo{}, fmt.Errorf("decode ffprobe: %w", err)
	}
	var info mediaInfo
	if info.Duration, err = strconv.ParseFloat(raw.Format.Duration, 64); err != nil {
		return mediaInfo{}, fmt.Errorf("parse duration %q: %w", raw.Format.Duration, err)
	}
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			info.Width, info.Height = s.Width, s.Height
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}

// makeFixture renders a test video with a tone so that audio extraction works.
func makeFixture(t *testing.T, dir string, seconds int) string {
	t.Helper()
	out := filepath.Join(dir, "input.mp4")
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi", "-i", fmt.Sprintf("testsrc=s=1280x720:d=%d", seconds),
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:duration=%d", seconds),
		"-shortest",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		out,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
	return out
}

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for range 10 {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	return "", errors.New("could not locate go.mod")
}

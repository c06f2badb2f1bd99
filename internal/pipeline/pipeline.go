package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/ports/adapters/source"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/usecase"
)

// Request is one run: a source identifier plus progress hooks.
type Request struct {
	Source string
	// RunID names the run in published keys and events; defaults to the run dir name.
	RunID    string
	Logf     func(format string, args ...any)
	Progress func(types.ClipEvent)
	Now      func() time.Time
}

type Output struct {
	RunID        string
	RunDir       string
	ManifestPath string
	Result       usecase.Result
}

func Run(ctx context.Context, cfg *config.Config, req Request) (Output, error) {
	logf := req.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	now := time.Now
	if req.Now != nil {
		now = req.Now
	}
	if strings.TrimSpace(req.Source) == "" {
		return Output{}, fmt.Errorf("source is empty")
	}

	w, err := buildWiring(ctx, cfg, req.Source, logf)
	if err != nil {
		return Output{}, err
	}
	defer w.close()

	runDir := buildRunOutDir(cfg.OutDir, req.Source, now().UTC())
	runID := req.RunID
	if runID == "" {
		runID = filepath.Base(runDir)
	}
	workDir := filepath.Join(cfg.CacheDir, "runs", source.WorkDirName(req.Source))
	logf("preparing workspace")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Output{}, err
	}
	logf("cache: %s", workDir)
	logf("output run dir: %s", runDir)

	ext := ".srt"
	if cfg.Captions.Format == "ass" {
		ext = ".ass"
	}
	res, err := usecase.New(w.deps).Run(ctx, usecase.Input{
		Identifier:  req.Source,
		WorkDir:     workDir,
		OutDir:      runDir,
		ClipLength:  cfg.Clips.Length(),
		Count:       cfg.Clips.Count,
		Aspect:      types.Aspect(cfg.Clips.Aspect),
		Concurrency: cfg.Clips.Concurrency,
		Captions:    cfg.Captions.Enabled,
		SubtitleExt: ext,
		Language:    cfg.Transcription.Language,
		Progress:    req.Progress,
		Logf:        logf,
	})
	out := Output{RunID: runID, RunDir: runDir, Result: res}
	if err != nil {
		if len(res.Clips) > 0 {
			// Published clips stay valid after cancellation.
			if p, werr := writeManifest(runDir, res.Manifest); werr == nil {
				out.ManifestPath = p
			}
		}
		return out, err
	}

	if w.publisher != nil {
		publishArtifacts(ctx, w.publisher, runID, runDir, &res.Manifest, logf)
	}
	manifestPath, err := writeManifest(runDir, res.Manifest)
	if err != nil {
		return out, err
	}
	out.ManifestPath = manifestPath
	out.Result.Manifest = res.Manifest
	logf("manifest written (%d clips): %s", len(res.Manifest.Clips), manifestPath)

	if w.publisher != nil {
		if _, err := w.publisher.Publish(ctx, manifestPath, path.Join(runID, "manifest.json")); err != nil {
			logf("publish manifest: %v", err)
		}
	}
	if w.sink != nil {
		emitClips(ctx, w.sink, runID, res.Manifest, logf)
	}
	return out, nil
}

func writeManifest(runDir string, m types.Manifest) (string, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	p := filepath.Join(runDir, "manifest.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// publishArtifacts uploads each clip's files under runID/. Failures become
// clip warnings; the local artifacts remain the source of truth.
func publishArtifacts(ctx context.Context, pub ports.Publisher, runID, runDir string, m *types.Manifest, logf func(string, ...any)) {
	for i := range m.Clips {
		c := &m.Clips[i]
		for _, rel := range []string{c.File, c.Subtitles, c.Thumbnail} {
			if rel == "" {
				continue
			}
			u, err := pub.Publish(ctx, filepath.Join(runDir, filepath.FromSlash(rel)), path.Join(runID, rel))
			if err != nil {
				logf("clip %s: publish %s: %v", c.ID, rel, err)
				c.Warnings = append(c.Warnings, fmt.Sprintf("%s: %v", types.StagePublish, err))
				continue
			}
			if rel == c.File {
				c.RemoteURL = u
			}
		}
	}
}

func emitClips(ctx context.Context, sink ports.ResultSink, runID string, m types.Manifest, logf func(string, ...any)) {
	for _, c := range m.Clips {
		if err := sink.Emit(ctx, runID, c); err != nil {
			logf("clip %s: emit event: %v", c.ID, err)
		}
	}
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := sourceName(input)
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

// sourceName is the last path element of a file path or URL, without extension.
// URLs without a useful path fall back to their host.
func sourceName(input string) string {
	if u, err := url.Parse(input); err == nil && u.Scheme != "" && u.Host != "" {
		base := path.Base(u.Path)
		if base == "/" || base == "." || base == "watch" {
			if v := u.Query().Get("v"); v != "" {
				return v
			}
			return u.Host
		}
		return strings.TrimSuffix(base, path.Ext(base))
	}
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

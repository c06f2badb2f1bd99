package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
)

const Name = "whispercpp"

type Adapter struct {
	bin   string
	model string
	run   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath, run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Input() types.InputKind { return types.InputAudio }

func (a *Adapter) Transcribe(ctx context.Context, req types.TranscribeRequest) (types.Transcript, error) {
	if req.AudioPath == "" {
		return types.Transcript{}, fmt.Errorf("whisper.cpp: audio path is required")
	}
	outPrefix := strings.TrimSuffix(req.AudioPath, filepath.Ext(req.AudioPath)) + ".whisper"
	args := []string{
		"-m", a.model,
		"-f", req.AudioPath,
		"-oj",
		"-of", outPrefix,
	}
	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}
	b, err := a.run(ctx, a.bin, args...)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}
	defer os.Remove(outPrefix + ".json")

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	tr, err := parseOutput(jb)
	if err != nil {
		return types.Transcript{}, err
	}
	tr.Language = req.Language
	return tr, nil
}

// whisper.cpp -oj layout; offsets are milliseconds from the start of the input.
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseOutput(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper.cpp json: %w", err)
	}
	tr := types.Transcript{Provider: Name, Origin: types.OriginClip, Language: out.Result.Language}
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return tr, nil
}

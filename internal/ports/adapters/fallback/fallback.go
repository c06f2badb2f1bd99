package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

// Chain tries transcribers in order and returns the first non-empty transcript.
type Chain struct {
	providers []ports.Transcriber
	logf      func(format string, args ...any)
}

func New(logf func(format string, args ...any), providers ...ports.Transcriber) *Chain {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Chain{providers: providers, logf: logf}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Input is the strongest requirement of any member so callers prepare every input once.
func (c *Chain) Input() types.InputKind {
	kind := types.InputNone
	for _, p := range c.providers {
		switch p.Input() {
		case types.InputAudio:
			return types.InputAudio
		case types.InputMedia:
			kind = types.InputMedia
		}
	}
	return kind
}

func (c *Chain) Transcribe(ctx context.Context, req types.TranscribeRequest) (types.Transcript, error) {
	if len(c.providers) == 0 {
		return types.Transcript{}, fmt.Errorf("%w: no providers configured", types.ErrTranscriptionUnavailable)
	}
	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return types.Transcript{}, err
		}
		if !ready(p.Input(), req) {
			errs = append(errs, fmt.Errorf("%s: missing %s input", p.Name(), p.Input()))
			continue
		}
		tr, err := p.Transcribe(ctx, req)
		if err != nil {
			c.logf("transcriber %s failed: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if strings.TrimSpace(tr.PlainText()) == "" {
			errs = append(errs, fmt.Errorf("%s: empty transcript", p.Name()))
			continue
		}
		if tr.Provider == "" {
			tr.Provider = p.Name()
		}
		return tr, nil
	}
	return types.Transcript{}, fmt.Errorf("%w: %w", types.ErrTranscriptionUnavailable, errors.Join(errs...))
}

func ready(kind types.InputKind, req types.TranscribeRequest) bool {
	switch kind {
	case types.InputAudio:
		return req.AudioPath != ""
	case types.InputMedia:
		return req.MediaPath != ""
	default:
		return req.ExternalID != ""
	}
}

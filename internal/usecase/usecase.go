package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/clipforge/internal/domain/metadata"
	"github.com/forPelevin/clipforge/internal/domain/sampling"
	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

const DefaultConcurrency = 2

type Deps struct {
	Source      ports.VideoSource
	Prober      ports.Prober
	Validator   ports.Validator
	Encoder     ports.Encoder
	Audio       ports.AudioExtractor
	Transcriber ports.Transcriber
	Burner      ports.CaptionBurner
	Titler      ports.Titler
	// Thumbnailer is optional.
	Thumbnailer ports.Thumbnailer
	Sampler     *sampling.Sampler
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Sampler == nil {
		d.Sampler = sampling.New(nil)
	}
	return Usecase{d: d}
}

type Input struct {
	Identifier string
	// WorkDir receives the acquired source. Temporary audio goes to a
	// run-unique directory beneath it.
	WorkDir string
	// OutDir is the run directory holding clips/, subtitles/ and thumbnails/.
	OutDir      string
	ClipLength  time.Duration
	Count       int
	Aspect      types.Aspect
	Concurrency int
	Captions    bool
	// SubtitleExt is ".srt" or ".ass".
	SubtitleExt string
	Language    string

	Progress func(types.ClipEvent)
	Logf     func(format string, args ...any)
}

type Result struct {
	Source types.SourceVideo
	// Clips holds published clips sorted by id.
	Clips []types.ClipResult
	// Reports lists every dropped or degraded clip, one entry per stage failure.
	Reports  []types.ClipReport
	Manifest types.Manifest
}

type clipOutcome struct {
	result   *types.ClipResult
	dropped  *types.StageError
	warnings []*types.StageError
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	if err := u.d.check(); err != nil {
		return Result{}, err
	}
	logf := in.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if in.Aspect == "" {
		in.Aspect = types.AspectOriginal
	}
	if in.SubtitleExt == "" {
		in.SubtitleExt = ".srt"
	}
	conc := in.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}

	logf("fetching source %s", in.Identifier)
	src, err := u.d.Source.Fetch(ctx, in.Identifier, in.WorkDir)
	if err != nil {
		return Result{}, fmt.Errorf("fetch source: %w", err)
	}
	if !u.d.Validator.IsValid(ctx, src.Path, false) {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: source %s does not decode", types.ErrMediaUnreadable, src.Path)
	}
	pr, err := u.d.Prober.Probe(ctx, src.Path)
	if err != nil {
		return Result{}, fmt.Errorf("probe source: %w", err)
	}
	if pr.Duration <= 0 {
		return Result{}, fmt.Errorf("%w: %s has no duration", types.ErrMediaUnreadable, src.Path)
	}
	src.Duration = pr.Duration
	src.Readable = true
	logf("source duration: %s", pr.Duration.Round(time.Millisecond))

	windows, err := u.d.Sampler.Sample(src.Duration, in.ClipLength, in.Count)
	if err != nil {
		return Result{}, err
	}

	for _, d := range []string{"clips", "subtitles", "thumbnails"} {
		if err := os.MkdirAll(filepath.Join(in.OutDir, d), 0o755); err != nil {
			return Result{}, err
		}
	}
	// Runs sharing a source share WorkDir, so per-clip audio lives in a
	// directory unique to this run.
	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		return Result{}, err
	}
	scratch, err := os.MkdirTemp(in.WorkDir, "audio-")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(scratch)

	// One goroutine owns progress so concurrent clips never interleave output.
	events := make(chan types.ClipEvent, 4*len(windows))
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range events {
			if ev.Err != nil {
				logf("clip %s: %s (%s): %v", ev.ClipID, ev.State, ev.Stage, ev.Err)
			} else {
				logf("clip %s: %s", ev.ClipID, ev.State)
			}
			if in.Progress != nil {
				in.Progress(ev)
			}
		}
	}()

	outcomes := make([]clipOutcome, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for i, w := range windows {
		c := &clipRun{
			u:       u,
			in:      in,
			src:     src,
			n:       i + 1,
			id:      fmt.Sprintf("%03d", i+1),
			window:  w,
			scratch: scratch,
			events:  events,
			out:     &outcomes[i],
		}
		g.Go(func() error { return c.run(gctx) })
	}
	runErr := g.Wait()
	close(events)
	<-progressDone

	res := assemble(in, src, outcomes)
	if runErr != nil {
		return res, fmt.Errorf("run cancelled: %w", runErr)
	}
	logf("published %d of %d clips", len(res.Clips), len(windows))
	return res, nil
}

func (d Deps) check() error {
	var missing []string
	for _, dep := range []struct {
		name string
		ok   bool
	}{
		{"source", d.Source != nil},
		{"prober", d.Prober != nil},
		{"validator", d.Validator != nil},
		{"encoder", d.Encoder != nil},
		{"audio extractor", d.Audio != nil},
		{"transcriber", d.Transcriber != nil},
		{"caption burner", d.Burner != nil},
		{"titler", d.Titler != nil},
	} {
		if !dep.ok {
			missing = append(missing, dep.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("usecase: missing dependencies: %v", missing)
	}
	return nil
}

// clipRun is the state machine of one sampled window. It only writes to its
// own outcome slot and its own files.
type clipRun struct {
	u       Usecase
	in      Input
	src     types.SourceVideo
	n       int
	id      string
	window  types.ClipWindow
	scratch string
	events  chan<- types.ClipEvent
	out     *clipOutcome

	partial []string
}

func (c *clipRun) emit(state types.ClipState, stage types.Stage, err error) {
	c.events <- types.ClipEvent{ClipID: c.id, State: state, Stage: stage, Err: err, At: time.Now()}
}

func (c *clipRun) drop(stage types.Stage, err error) {
	c.cleanup()
	c.out.dropped = &types.StageError{ClipID: c.id, Stage: stage, Err: err}
	c.emit(types.StateDropped, stage, err)
}

func (c *clipRun) warn(stage types.Stage, err error) {
	c.out.warnings = append(c.out.warnings, &types.StageError{ClipID: c.id, Stage: stage, Err: err})
}

// cancelled removes every partial output and reports the context error.
func (c *clipRun) cancelled(ctx context.Context, stage types.Stage) error {
	c.drop(stage, ctx.Err())
	return ctx.Err()
}

func (c *clipRun) cleanup() {
	for _, p := range c.partial {
		_ = os.Remove(p)
	}
	c.partial = nil
}

func (c *clipRun) track(p string) string {
	c.partial = append(c.partial, p)
	return p
}

func (c *clipRun) run(ctx context.Context) error {
	d := c.u.d
	c.emit(types.StateSampled, "", nil)
	if ctx.Err() != nil {
		return c.cancelled(ctx, types.StageEncode)
	}

	art := types.ClipArtifact{
		ID:     c.id,
		Window: c.window,
		Path:   c.track(filepath.Join(c.in.OutDir, "clips", c.id+".mp4")),
		Aspect: c.in.Aspect,
	}
	if err := d.Encoder.Encode(ctx, c.src.Path, art.Window, art.Aspect, art.Path); err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, types.StageEncode)
		}
		if !errors.Is(err, types.ErrEncodeFailed) {
			err = fmt.Errorf("%w: %w", types.ErrEncodeFailed, err)
		}
		c.drop(types.StageEncode, err)
		return nil
	}
	c.emit(types.StateEncoded, types.StageEncode, nil)

	requireAudio := c.in.Captions && d.Transcriber.Input() != types.InputNone
	art.Valid = d.Validator.IsValid(ctx, art.Path, requireAudio)
	if !art.Valid {
		if ctx.Err() != nil {
			return c.cancelled(ctx, types.StageValidate)
		}
		c.drop(types.StageValidate, fmt.Errorf("%w: %s", types.ErrValidationFailed, filepath.Base(art.Path)))
		return nil
	}
	c.emit(types.StateValidated, types.StageValidate, nil)

	tr := c.transcribe(ctx, art)
	if ctx.Err() != nil {
		return c.cancelled(ctx, types.StageTranscribe)
	}
	c.emit(types.StateTranscribed, types.StageTranscribe, nil)

	res := &types.ClipResult{
		ID:          c.id,
		Window:      c.window,
		Path:        art.Path,
		EncodedPath: art.Path,
		Transcript:  tr,
	}

	var captionErr error
	if c.in.Captions {
		captionErr = c.caption(ctx, res)
		if ctx.Err() != nil {
			return c.cancelled(ctx, types.StageBurn)
		}
	}
	c.emit(types.StateCaptioned, types.StageBurn, captionErr)

	if d.Thumbnailer != nil {
		thumb := c.track(filepath.Join(c.in.OutDir, "thumbnails", c.id+".jpg"))
		if err := d.Thumbnailer.Thumbnail(ctx, res.Path, thumb); err != nil {
			if ctx.Err() != nil {
				return c.cancelled(ctx, types.StageThumbnail)
			}
			_ = os.Remove(thumb)
			c.warn(types.StageThumbnail, err)
		} else {
			res.ThumbnailPath = thumb
		}
	}

	res.Metadata = d.Titler.Suggest(ctx, c.id, tr)
	res.DownloadName = metadata.DownloadName(res.Metadata.Title, c.n)
	res.Warnings = c.out.warnings
	if ctx.Err() != nil {
		return c.cancelled(ctx, types.StageMetadata)
	}

	c.partial = nil
	c.out.result = res
	c.emit(types.StatePublished, "", nil)
	return nil
}

// transcribe never fails: provider errors degrade to the unavailable sentinel.
func (c *clipRun) transcribe(ctx context.Context, art types.ClipArtifact) types.Transcript {
	d := c.u.d
	req := types.TranscribeRequest{
		MediaPath:  art.Path,
		Language:   c.in.Language,
		ExternalID: c.src.ExternalID,
		Window:     art.Window,
	}
	if d.Transcriber.Input() == types.InputAudio {
		wav := filepath.Join(c.scratch, c.id+".wav")
		defer os.Remove(wav)
		if err := d.Audio.ExtractAudioMono16k(ctx, art.Path, wav); err != nil {
			c.warn(types.StageAudio, fmt.Errorf("%w: %w", types.ErrTranscriptionUnavailable, err))
			return types.UnavailableTranscript()
		}
		req.AudioPath = wav
	}

	tr, err := d.Transcriber.Transcribe(ctx, req)
	if err != nil {
		if !errors.Is(err, types.ErrTranscriptionUnavailable) {
			err = fmt.Errorf("%w: %w", types.ErrTranscriptionUnavailable, err)
		}
		c.warn(types.StageTranscribe, err)
		return types.UnavailableTranscript()
	}
	if tr.Origin == "" {
		tr.Origin = types.OriginClip
	}
	// Whole-source transcripts are narrowed to this clip's window.
	return tr.Within(c.window)
}

// caption builds the clip-local track and burns it. A failure leaves the
// encoded clip as the published artifact.
func (c *clipRun) caption(ctx context.Context, res *types.ClipResult) error {
	track, err := subtitles.Build(res.Transcript, c.window, res.Transcript.Origin == types.OriginSource)
	if err != nil {
		c.warn(types.StageSubtitles, err)
		return err
	}
	if track.Empty() {
		err := fmt.Errorf("%w: no cues fall inside the clip window", types.ErrEmptyTranscript)
		c.warn(types.StageSubtitles, err)
		return err
	}

	subPath := c.track(filepath.Join(c.in.OutDir, "subtitles", c.id+c.in.SubtitleExt))
	outPath := c.track(filepath.Join(c.in.OutDir, "clips", c.id+"_captioned.mp4"))
	final, err := c.u.d.Burner.Burn(ctx, res.Path, track, subPath, outPath)
	if err != nil {
		_ = os.Remove(outPath)
		_ = os.Remove(subPath)
		if !errors.Is(err, types.ErrBurnFailed) {
			err = fmt.Errorf("%w: %w", types.ErrBurnFailed, err)
		}
		c.warn(types.StageBurn, err)
		return err
	}
	res.Path = final
	res.Captioned = true
	res.SubtitlesPath = subPath
	return nil
}

func assemble(in Input, src types.SourceVideo, outcomes []clipOutcome) Result {
	res := Result{Source: src}
	m := types.Manifest{Input: in.Identifier, Source: src}
	for _, o := range outcomes {
		if o.dropped != nil {
			r := report(o.dropped, types.StateDropped)
			res.Reports = append(res.Reports, r)
			m.Dropped = append(m.Dropped, r)
			continue
		}
		if o.result == nil {
			continue
		}
		for _, w := range o.warnings {
			res.Reports = append(res.Reports, report(w, types.StatePublished))
		}
		res.Clips = append(res.Clips, *o.result)
	}
	sort.Slice(res.Clips, func(i, j int) bool { return res.Clips[i].ID < res.Clips[j].ID })

	for _, c := range res.Clips {
		mc := types.ManifestClip{
			ID:           c.ID,
			StartSec:     c.Window.Start.Seconds(),
			EndSec:       c.Window.End().Seconds(),
			File:         rel(in.OutDir, c.Path),
			Captioned:    c.Captioned,
			Subtitles:    rel(in.OutDir, c.SubtitlesPath),
			Thumbnail:    rel(in.OutDir, c.ThumbnailPath),
			DownloadName: c.DownloadName,
			Title:        c.Metadata.Title,
			Hashtags:     c.Metadata.Hashtags,
			Transcript:   c.Transcript.PlainText(),
		}
		for _, w := range c.Warnings {
			mc.Warnings = append(mc.Warnings, fmt.Sprintf("%s: %v", w.Stage, w.Err))
		}
		m.Clips = append(m.Clips, mc)
	}
	res.Manifest = m
	return res
}

func report(e *types.StageError, state types.ClipState) types.ClipReport {
	return types.ClipReport{ClipID: e.ClipID, State: state, Stage: e.Stage, Reason: e.Err.Error()}
}

func rel(base, p string) string {
	if p == "" {
		return ""
	}
	r, err := filepath.Rel(base, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

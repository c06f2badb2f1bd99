package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/domain/metadata"
	"github.com/forPelevin/clipforge/internal/domain/sampling"
	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/ports/adapters/fallback"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/clipforge/internal/ports/adapters/googlespeech"
	"github.com/forPelevin/clipforge/internal/ports/adapters/kafka"
	"github.com/forPelevin/clipforge/internal/ports/adapters/openai"
	"github.com/forPelevin/clipforge/internal/ports/adapters/openrouter"
	"github.com/forPelevin/clipforge/internal/ports/adapters/rediscache"
	"github.com/forPelevin/clipforge/internal/ports/adapters/s3store"
	"github.com/forPelevin/clipforge/internal/ports/adapters/source"
	"github.com/forPelevin/clipforge/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/clipforge/internal/ports/adapters/youtube"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/usecase"
)

// wiring is everything a run needs beyond the usecase deps.
type wiring struct {
	deps      usecase.Deps
	publisher ports.Publisher
	sink      ports.ResultSink
	closers   []func() error
}

func (w *wiring) close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		_ = w.closers[i]()
	}
}

func buildWiring(ctx context.Context, cfg *config.Config, identifier string, logf func(string, ...any)) (*wiring, error) {
	w := &wiring{}

	style := ffmpeg.DefaultCaptionStyle()
	style.Position = subtitles.Position(cfg.Captions.Position)
	style.FontName = cfg.Captions.FontName
	style.FontSize = cfg.Captions.FontSize
	if types.Aspect(cfg.Clips.Aspect) == types.AspectVertical {
		style.PlayResX, style.PlayResY = 1080, 1920
	}
	ff := ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe).
		WithEncoding(cfg.Encode.Encoding()).
		WithCaptionStyle(style)

	var store *s3store.Store
	kind := source.Kind(cfg.Source.Kind)
	needS3 := cfg.S3.Bucket != "" || kind == source.KindS3 ||
		((kind == "" || kind == source.KindAuto) && source.Detect(identifier) == source.KindS3)
	if needS3 {
		s, err := s3store.New(ctx, s3store.Config{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Profile:      cfg.S3.Profile,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		store = s
		if cfg.S3.Bucket != "" {
			w.publisher = s
		}
	}

	resolver := &source.Resolver{
		Force: kind,
		Local: source.Local{},
		YTDLP: source.NewYTDLP(cfg.Tools.YTDLP).WithFormat(cfg.Source.YTDLPFormat),
		HTTP:  source.NewHTTP(&http.Client{Timeout: cfg.Source.HTTPTimeout}),
	}
	if store != nil {
		resolver.S3 = source.NewS3(store)
	}

	tr, err := buildTranscriber(ctx, cfg.Transcription, logf)
	if err != nil {
		return nil, err
	}
	if cfg.Redis.Addr != "" {
		kv, closeKV, err := rediscache.NewRedisKV(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if closeKV != nil {
			w.closers = append(w.closers, closeKV)
		}
		if err != nil {
			logf("transcript cache disabled: %v", err)
		} else {
			tr = rediscache.New(tr, kv, cfg.Redis.TTL, logf)
		}
	}

	seed := cfg.Clips.Seed
	rules := metadata.NewSuggester(cfg.Metadata.Rules(), newRand(seed))
	var titler ports.Titler = rules
	if cfg.Metadata.LLM.Enabled {
		llm := cfg.Metadata.LLM
		titler = openrouter.New(llm.APIKey, llm.Model, llm.BaseURL, cfg.Metadata.MaxTags, rules, logf)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.New(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic, ClientID: cfg.Kafka.ClientID})
		if err != nil {
			w.close()
			return nil, err
		}
		w.sink = sink
		w.closers = append(w.closers, sink.Close)
	}

	w.deps = usecase.Deps{
		Source:      resolver,
		Prober:      ff,
		Validator:   ff,
		Encoder:     ff,
		Audio:       ff,
		Transcriber: tr,
		Burner:      ff,
		Titler:      titler,
		Thumbnailer: ff,
		Sampler:     sampling.NewSeeded(seed),
	}
	return w, nil
}

// buildTranscriber constructs the configured providers in order; more than one
// is wrapped in a fallback chain.
func buildTranscriber(ctx context.Context, tc config.TranscriptionConfig, logf func(string, ...any)) (ports.Transcriber, error) {
	providers := make([]ports.Transcriber, 0, len(tc.Providers))
	for _, name := range tc.Providers {
		switch name {
		case config.ProviderWhisperCPP:
			providers = append(providers, whispercpp.New(tc.WhisperBin, tc.WhisperModel))
		case config.ProviderOpenAI:
			providers = append(providers, openai.New(tc.OpenAIAPIKey, tc.OpenAIModel, tc.OpenAIBaseURL))
		case config.ProviderGoogleSpeech:
			gs, err := googlespeech.New(ctx, tc.GoogleSpeechAPIKey)
			if err != nil {
				return nil, err
			}
			providers = append(providers, gs)
		case config.ProviderYouTube:
			yt, err := youtube.New(ctx, tc.YouTubeCredentialsFile)
			if err != nil {
				return nil, err
			}
			providers = append(providers, yt)
		default:
			return nil, fmt.Errorf("unknown transcription provider %q", name)
		}
	}
	switch len(providers) {
	case 0:
		return nil, fmt.Errorf("no transcription provider configured")
	case 1:
		return providers[0], nil
	}
	return fallback.New(logf, providers...), nil
}

// newRand returns a seeded generator, or a random one for seed 0.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed+1))
}

// ensure adapters implement ports
var (
	_ ports.Prober         = (*ffmpeg.Adapter)(nil)
	_ ports.Validator      = (*ffmpeg.Adapter)(nil)
	_ ports.Encoder        = (*ffmpeg.Adapter)(nil)
	_ ports.AudioExtractor = (*ffmpeg.Adapter)(nil)
	_ ports.CaptionBurner  = (*ffmpeg.Adapter)(nil)
	_ ports.Thumbnailer    = (*ffmpeg.Adapter)(nil)
	_ ports.Transcriber    = (*whispercpp.Adapter)(nil)
	_ ports.Transcriber    = (*openai.Adapter)(nil)
	_ ports.Transcriber    = (*googlespeech.Adapter)(nil)
	_ ports.Transcriber    = (*youtube.Adapter)(nil)
	_ ports.Transcriber    = (*fallback.Chain)(nil)
	_ ports.Transcriber    = (*rediscache.Cache)(nil)
	_ ports.VideoSource    = (*source.Resolver)(nil)
	_ ports.VideoSource    = source.Local{}
	_ ports.VideoSource    = (*source.YTDLP)(nil)
	_ ports.VideoSource    = (*source.HTTP)(nil)
	_ ports.VideoSource    = (*source.S3)(nil)
	_ ports.Titler         = (*metadata.Suggester)(nil)
	_ ports.Titler         = (*openrouter.Adapter)(nil)
	_ ports.Publisher      = (*s3store.Store)(nil)
	_ ports.ResultSink     = (*kafka.Sink)(nil)
)

package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/logx"
	"github.com/forPelevin/clipforge/internal/ports/adapters/openrouter"
	"github.com/forPelevin/clipforge/internal/ports/adapters/source"
	"github.com/forPelevin/clipforge/internal/types"
)

var scaleRE = regexp.MustCompile(`^-?\d+:-?\d+$`)

// Validate reports every violation at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if c.OutDir == "" {
		add("out_dir is required")
	}
	if c.CacheDir == "" {
		add("cache_dir is required")
	}
	if _, err := logx.ParseLevel(c.LogLevel); err != nil {
		add("log_level: %v", err)
	}
	if !source.Kind(c.Source.Kind).Valid() {
		add("source.kind %q must be one of auto, local, ytdlp, http, s3", c.Source.Kind)
	}

	if c.Clips.LengthSec <= 0 {
		add("clips.length_sec must be > 0")
	}
	if c.Clips.Count <= 0 {
		add("clips.count must be > 0")
	}
	if !types.Aspect(c.Clips.Aspect).Valid() {
		add("clips.aspect %q must be original or vertical", c.Clips.Aspect)
	}
	if c.Clips.Concurrency <= 0 {
		add("clips.concurrency must be > 0")
	}

	if c.Encode.VideoCodec == "" {
		add("encode.video_codec is required")
	}
	if c.Encode.Preset == "" {
		add("encode.preset is required")
	}
	if c.Encode.CRF < 0 || c.Encode.CRF > 51 {
		add("encode.crf must be between 0 and 51")
	}
	if c.Encode.AudioCodec == "" {
		add("encode.audio_codec is required")
	}
	if c.Encode.Scale != "" && !scaleRE.MatchString(c.Encode.Scale) {
		add("encode.scale %q must look like W:H (e.g. 720:1280)", c.Encode.Scale)
	}

	if c.Captions.Format != "srt" && c.Captions.Format != "ass" {
		add("captions.format %q must be srt or ass", c.Captions.Format)
	}
	if !subtitles.Position(c.Captions.Position).Valid() {
		add("captions.position %q must be bottom or middle", c.Captions.Position)
	}
	if c.Captions.FontSize <= 0 {
		add("captions.font_size must be > 0")
	}

	c.validateTranscription(add)

	if c.Metadata.TitleWords <= 0 || c.Metadata.MinTagLength < 0 || c.Metadata.MaxTags <= 0 {
		add("metadata.title_words and metadata.max_tags must be > 0, metadata.min_tag_length >= 0")
	}
	if c.Metadata.LLM.Enabled {
		if c.Metadata.LLM.APIKey == "" {
			add("metadata.llm.enabled requires OPENROUTER_API_KEY")
		}
		if err := openrouter.ValidateBaseURL(c.Metadata.LLM.BaseURL, c.Metadata.LLM.AllowedHosts); err != nil {
			add("%v", err)
		}
	}

	if c.Tools.FFmpeg == "" || c.Tools.FFprobe == "" {
		add("tools.ffmpeg and tools.ffprobe are required")
	}
	if c.Redis.Addr != "" {
		if c.Redis.DB < 0 {
			add("redis.db must be >= 0")
		}
		if c.Redis.TTL <= 0 {
			add("redis.ttl must be > 0")
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		add("kafka.topic is required when brokers are set")
	}
	if c.Server.MaxRuns <= 0 {
		add("server.max_runs must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateTranscription(add func(string, ...any)) {
	t := c.Transcription
	if len(t.Providers) == 0 {
		add("transcription.providers must list at least one of %s", strings.Join(knownProviders, ", "))
		return
	}
	seen := map[string]bool{}
	for _, p := range t.Providers {
		if seen[p] {
			add("transcription.providers lists %q twice", p)
			continue
		}
		seen[p] = true
		switch p {
		case ProviderWhisperCPP:
			if t.WhisperModel == "" {
				add("whispercpp requires transcription.whisper_model")
			}
		case ProviderGoogleSpeech:
			if t.GoogleSpeechAPIKey == "" {
				add("googlespeech requires GOOGLE_SPEECH_API_KEY")
			}
		case ProviderOpenAI:
			if t.OpenAIAPIKey == "" {
				add("openai requires OPENAI_API_KEY")
			}
		case ProviderYouTube:
			if t.YouTubeCredentialsFile == "" {
				add("youtube requires YOUTUBE_CREDENTIALS_FILE")
			}
		default:
			add("unknown transcription provider %q (want %s)", p, strings.Join(knownProviders, ", "))
		}
	}
}

package config

import (
	"time"

	"github.com/forPelevin/clipforge/internal/domain/metadata"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ffmpeg"
)

// Config is the full runtime configuration: defaults, then YAML, then
// environment, then command-line flags.
type Config struct {
	OutDir string `yaml:"out_dir"`
	// CacheDir holds downloaded sources and temporary audio.
	CacheDir string `yaml:"cache_dir"`
	LogLevel string `yaml:"log_level"`

	Source        SourceConfig        `yaml:"source"`
	Clips         ClipsConfig         `yaml:"clips"`
	Encode        EncodeConfig        `yaml:"encode"`
	Captions      CaptionsConfig      `yaml:"captions"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Metadata      MetadataConfig      `yaml:"metadata"`
	Tools         ToolsConfig         `yaml:"tools"`
	Redis         RedisConfig         `yaml:"redis"`
	S3            S3Config            `yaml:"s3"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Server        ServerConfig        `yaml:"server"`
}

type SourceConfig struct {
	// Kind forces a source variant: auto, local, ytdlp, http or s3.
	Kind        string        `yaml:"kind"`
	YTDLPFormat string        `yaml:"ytdlp_format"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type ClipsConfig struct {
	LengthSec   int    `yaml:"length_sec"`
	Count       int    `yaml:"count"`
	Aspect      string `yaml:"aspect"`
	Concurrency int    `yaml:"concurrency"`
	// Seed makes sampling and hashtag shuffling reproducible; 0 is random.
	Seed uint64 `yaml:"seed"`
}

func (c ClipsConfig) Length() time.Duration { return time.Duration(c.LengthSec) * time.Second }

type EncodeConfig struct {
	VideoCodec   string `yaml:"video_codec"`
	Preset       string `yaml:"preset"`
	CRF          int    `yaml:"crf"`
	AudioCodec   string `yaml:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate"`
	// Scale is an ffmpeg scale expression such as "720:1280"; empty keeps the size.
	Scale string `yaml:"scale"`
}

func (e EncodeConfig) Encoding() ffmpeg.Encoding {
	return ffmpeg.Encoding{
		VideoCodec:   e.VideoCodec,
		Preset:       e.Preset,
		CRF:          e.CRF,
		AudioCodec:   e.AudioCodec,
		AudioBitrate: e.AudioBitrate,
		Scale:        e.Scale,
	}
}

type CaptionsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Format   string `yaml:"format"`
	Position string `yaml:"position"`
	FontName string `yaml:"font_name"`
	FontSize int    `yaml:"font_size"`
}

type TranscriptionConfig struct {
	// Providers are tried in order until one returns a non-empty transcript.
	Providers []string `yaml:"providers"`
	Language  string   `yaml:"language"`

	WhisperBin   string `yaml:"whisper_bin"`
	WhisperModel string `yaml:"whisper_model"`

	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIAPIKey  string `yaml:"-"`

	GoogleSpeechAPIKey     string `yaml:"-"`
	YouTubeCredentialsFile string `yaml:"youtube_credentials_file"`
}

type MetadataConfig struct {
	TitleWords   int       `yaml:"title_words"`
	MinTagLength int       `yaml:"min_tag_length"`
	MaxTags      int       `yaml:"max_tags"`
	LLM          LLMConfig `yaml:"llm"`
}

func (m MetadataConfig) Rules() metadata.Rules {
	return metadata.Rules{TitleWords: m.TitleWords, MinTagLength: m.MinTagLength, MaxTags: m.MaxTags}
}

type LLMConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	APIKey       string   `yaml:"-"`
}

type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	YTDLP   string `yaml:"ytdlp"`
}

// RedisConfig enables the transcript cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Password string        `yaml:"-"`
}

// S3Config enables artifact publishing when Bucket is set. Region and
// endpoint also apply to s3:// sources.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// KafkaConfig enables clip events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	MaxRuns int    `yaml:"max_runs"`
	// LocalRoot confines local file sources submitted over HTTP. Empty
	// rejects them.
	LocalRoot string `yaml:"local_root"`
}

func Default() *Config {
	enc := ffmpeg.DefaultEncoding()
	style := ffmpeg.DefaultCaptionStyle()
	rules := metadata.DefaultRules()
	return &Config{
		OutDir:   "out",
		CacheDir: ".cache",
		LogLevel: "normal",
		Source: SourceConfig{
			Kind:        "auto",
			YTDLPFormat: "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b",
			HTTPTimeout: 30 * time.Minute,
		},
		Clips: ClipsConfig{
			LengthSec:   30,
			Count:       3,
			Aspect:      "original",
			Concurrency: 2,
		},
		Encode: EncodeConfig{
			VideoCodec:   enc.VideoCodec,
			Preset:       enc.Preset,
			CRF:          enc.CRF,
			AudioCodec:   enc.AudioCodec,
			AudioBitrate: enc.AudioBitrate,
		},
		Captions: CaptionsConfig{
			Enabled:  true,
			Format:   "srt",
			Position: string(style.Position),
			FontName: style.FontName,
			FontSize: style.FontSize,
		},
		Transcription: TranscriptionConfig{
			Providers:    []string{ProviderWhisperCPP},
			Language:     "en",
			WhisperBin:   ".cache/bin/whisper.cpp",
			WhisperModel: ".cache/models/ggml-base.bin",
			OpenAIModel:  "whisper-1",
		},
		Metadata: MetadataConfig{
			TitleWords:   rules.TitleWords,
			MinTagLength: rules.MinTagLength,
			MaxTags:      rules.MaxTags,
			LLM: LLMConfig{
				Model:   "z-ai/glm-4.5-air:free",
				BaseURL: "https://openrouter.ai",
			},
		},
		Tools: ToolsConfig{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			YTDLP:   "yt-dlp",
		},
		Redis: RedisConfig{TTL: 7 * 24 * time.Hour},
		Kafka: KafkaConfig{Topic: "clipforge.clips", ClientID: "clipforge"},
		Server: ServerConfig{
			Addr:    ":8080",
			MaxRuns: 2,
		},
	}
}

const (
	ProviderWhisperCPP   = "whispercpp"
	ProviderGoogleSpeech = "googlespeech"
	ProviderOpenAI       = "openai"
	ProviderYouTube      = "youtube"
)

var knownProviders = []string{ProviderWhisperCPP, ProviderGoogleSpeech, ProviderOpenAI, ProviderYouTube}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_OverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipforge.yaml")
	yml := `
out_dir: renders
clips:
  length_sec: 15
  count: 5
  aspect: vertical
encode:
  scale: "720:1280"
captions:
  format: ass
  position: middle
transcription:
  providers: [openai, whispercpp]
redis:
  addr: localhost:6379
  ttl: 2h
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutDir != "renders" || cfg.Clips.Length() != 15*time.Second || cfg.Clips.Count != 5 {
		t.Fatalf("unexpected clips config %+v", cfg.Clips)
	}
	if cfg.Clips.Concurrency != 2 {
		t.Fatalf("unset fields must keep defaults, got concurrency %d", cfg.Clips.Concurrency)
	}
	if cfg.Encode.Encoding().Scale != "720:1280" || cfg.Encode.CRF != 18 {
		t.Fatalf("unexpected encode config %+v", cfg.Encode)
	}
	if cfg.Captions.Format != "ass" || cfg.Captions.Position != "middle" {
		t.Fatalf("unexpected captions %+v", cfg.Captions)
	}
	if strings.Join(cfg.Transcription.Providers, ",") != "openai,whispercpp" {
		t.Fatalf("unexpected providers %v", cfg.Transcription.Providers)
	}
	if cfg.Redis.TTL != 2*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.Redis.TTL)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("clips:\n  lenght_sec: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Clips.LengthSec != 30 {
		t.Fatalf("expected defaults, got %+v", cfg.Clips)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestSave_RoundTripOmitsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Clips.Count = 9
	cfg.Metadata.LLM.APIKey = "sk-secret"
	path := filepath.Join(t.TempDir(), "nested", "out.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "sk-secret") {
		t.Fatalf("secret leaked into config file")
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Clips.Count != 9 {
		t.Fatalf("unexpected count %d", got.Clips.Count)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPENROUTER_API_KEY":       "sk-or",
		"OPENROUTER_ALLOWED_HOSTS": "proxy.internal, openrouter.ai",
		"OPENAI_API_KEY":           "sk-oa",
		"KAFKA_BROKERS":            "k1:9092,k2:9092",
		"S3_BUCKET":                "clips",
		"REDIS_DB":                 "3",
		"REDIS_ADDR":               "   ",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Metadata.LLM.APIKey != "sk-or" || cfg.Transcription.OpenAIAPIKey != "sk-oa" {
		t.Fatalf("keys not applied")
	}
	if len(cfg.Metadata.LLM.AllowedHosts) != 2 || cfg.Metadata.LLM.AllowedHosts[0] != "proxy.internal" {
		t.Fatalf("unexpected hosts %v", cfg.Metadata.LLM.AllowedHosts)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.S3.Bucket != "clips" || cfg.Redis.DB != 3 {
		t.Fatalf("unexpected config %+v %+v %+v", cfg.Kafka, cfg.S3, cfg.Redis)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("blank env must be ignored, got %q", cfg.Redis.Addr)
	}
}

func TestApplyEnv_BadRedisDB(t *testing.T) {
	err := Default().ApplyEnv(func(k string) string {
		if k == "REDIS_DB" {
			return "two"
		}
		return ""
	})
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Clips.LengthSec = 0
	cfg.Clips.Aspect = "square"
	cfg.Encode.CRF = 60
	cfg.Transcription.Providers = []string{"openai", "nonsense"}
	cfg.Metadata.LLM.Enabled = true
	cfg.Metadata.LLM.BaseURL = "http://evil.example"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{
		"clips.length_sec",
		"clips.aspect",
		"encode.crf",
		"OPENAI_API_KEY",
		`unknown transcription provider "nonsense"`,
		"OPENROUTER_API_KEY",
		"https is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_OptionalIntegrations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"kafka without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }, "kafka.topic"},
		{"redis bad ttl", func(c *Config) { c.Redis.Addr = "r:6379"; c.Redis.TTL = 0 }, "redis.ttl"},
		{"bad scale", func(c *Config) { c.Encode.Scale = "720x1280" }, "encode.scale"},
		{"bad source kind", func(c *Config) { c.Source.Kind = "ftp" }, "source.kind"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"duplicate provider", func(c *Config) { c.Transcription.Providers = []string{"whispercpp", "whispercpp"} }, "twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

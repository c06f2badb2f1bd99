package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "CLIPFORGE_CONFIG"

// Load returns defaults overlaid with the YAML file at path, or with the first
// file FindFile locates when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = FindFile()
		if path == "" {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := decodeYAML(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// FindFile searches the standard locations and returns "" when none exists.
func FindFile() string {
	locations := []string{
		"./clipforge.yaml",
		"./clipforge.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".clipforge", "config.yaml"),
			filepath.Join(home, ".clipforge", "config.yml"),
		)
	}
	for _, p := range locations {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Save writes cfg as YAML. Secrets are never written.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment values. Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(dst *[]string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = splitList(v)
		}
	}

	set(&c.Metadata.LLM.APIKey, "OPENROUTER_API_KEY")
	set(&c.Metadata.LLM.Model, "OPENROUTER_MODEL")
	set(&c.Metadata.LLM.BaseURL, "OPENROUTER_BASE_URL")
	list(&c.Metadata.LLM.AllowedHosts, "OPENROUTER_ALLOWED_HOSTS")

	set(&c.Transcription.OpenAIAPIKey, "OPENAI_API_KEY")
	set(&c.Transcription.GoogleSpeechAPIKey, "GOOGLE_SPEECH_API_KEY")
	set(&c.Transcription.YouTubeCredentialsFile, "YOUTUBE_CREDENTIALS_FILE")
	set(&c.Transcription.WhisperBin, "WHISPER_BIN")
	set(&c.Transcription.WhisperModel, "WHISPER_MODEL")
	list(&c.Transcription.Providers, "CLIPFORGE_TRANSCRIBERS")

	set(&c.Redis.Addr, "REDIS_ADDR")
	set(&c.Redis.Password, "REDIS_PASS")

	list(&c.Kafka.Brokers, "KAFKA_BROKERS")
	set(&c.Kafka.Topic, "KAFKA_TOPIC")

	set(&c.S3.Bucket, "S3_BUCKET")
	set(&c.S3.Region, "AWS_REGION")
	set(&c.S3.Endpoint, "S3_ENDPOINT")

	set(&c.LogLevel, "CLIPFORGE_LOG_LEVEL")

	if v := strings.TrimSpace(getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

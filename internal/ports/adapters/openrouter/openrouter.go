package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

const (
	defaultModel   = "anthropic/claude-3.5-sonnet"
	requestTimeout = 90 * time.Second
	maxPromptRunes = 6000
	maxTitleRunes  = 80
)

// Adapter asks an LLM for a clip title and hashtags. Every failure is logged
// and answered by the fallback titler.
type Adapter struct {
	key      string
	model    string
	baseURL  string
	maxTags  int
	client   *http.Client
	fallback ports.Titler
	logf     func(string, ...any)
}

func New(apiKey, model, baseURL string, maxTags int, fallback ports.Titler, logf func(string, ...any)) *Adapter {
	if model == "" {
		model = defaultModel
	}
	if maxTags <= 0 {
		maxTags = 5
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Adapter{
		key:      apiKey,
		model:    model,
		baseURL:  normalizeBaseURL(baseURL),
		maxTags:  maxTags,
		client:   &http.Client{Timeout: 2 * time.Minute},
		fallback: fallback,
		logf:     logf,
	}
}

func (a *Adapter) Suggest(ctx context.Context, clipID string, tr types.Transcript) types.Metadata {
	if tr.Unavailable() || strings.TrimSpace(tr.PlainText()) == "" {
		return a.fallback.Suggest(ctx, clipID, tr)
	}
	md, err := a.complete(ctx, tr.PlainText())
	if err != nil {
		a.logf("openrouter: clip %s: %v; using rule-based metadata", clipID, err)
		return a.fallback.Suggest(ctx, clipID, tr)
	}
	if len(md.Hashtags) == 0 {
		md.Hashtags = a.fallback.Suggest(ctx, clipID, tr).Hashtags
	}
	return md
}

func (a *Adapter) complete(ctx context.Context, transcript string) (types.Metadata, error) {
	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": buildPrompt(truncate(transcript, maxPromptRunes), a.maxTags)},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name": "clipforge_metadata",
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":    map[string]any{"type": "string"},
						"hashtags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"title", "hashtags"},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return types.Metadata{}, fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return types.Metadata{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return types.Metadata{}, fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return types.Metadata{}, errors.New(redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return types.Metadata{}, fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return types.Metadata{}, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return types.Metadata{}, fmt.Errorf("decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return types.Metadata{}, errors.New("openrouter: no choices")
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return types.Metadata{}, err
	}
	clean, err := extractJSONObject(content)
	if err != nil {
		return types.Metadata{}, err
	}

	var out struct {
		Title    string   `json:"title"`
		Hashtags []string `json:"hashtags"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return types.Metadata{}, fmt.Errorf("openrouter: decode metadata: %w", err)
	}
	title := strings.Join(strings.Fields(out.Title), " ")
	if title == "" {
		return types.Metadata{}, errors.New("openrouter: empty title")
	}
	return types.Metadata{
		Title:    truncate(title, maxTitleRunes),
		Hashtags: normalizeHashtags(out.Hashtags, a.maxTags),
	}, nil
}

func buildPrompt(transcript string, maxTags int) string {
	return "Suggest a short title and hashtags for a social media video clip with this transcript. " +
		"Return strictly valid JSON (no markdown, no code fences) matching the provided schema. " +
		"The title must be at most eight words. " +
		fmt.Sprintf("Return at most %d hashtags, single lowercase words without spaces. ", maxTags) +
		"\n\nTranscript:\n" + transcript
}

// normalizeHashtags lowercases, strips everything but letters and digits,
// prefixes '#', dedupes and caps the list.
func normalizeHashtags(in []string, maxTags int) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, h := range in {
		tag := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, "#"+tag)
		if len(out) >= maxTags {
			break
		}
	}
	return out
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openrouter: empty content")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}

	return "", fmt.Errorf("openrouter: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

const (
	Name           = "openai"
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "whisper-1"
)

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = defaultModel
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{key: apiKey, model: model, baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Minute}}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Input() types.InputKind { return types.InputAudio }

type verboseResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (a *Adapter) Transcribe(ctx context.Context, req types.TranscribeRequest) (types.Transcript, error) {
	if a.key == "" {
		return types.Transcript{}, fmt.Errorf("openai: api key is empty")
	}
	body, contentType, err := a.buildForm(req)
	if err != nil {
		return types.Transcript{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/audio/transcriptions", body)
	if err != nil {
		return types.Transcript{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.key)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai transcribe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.ReplaceAll(string(b), a.key, "[REDACTED]")
		return types.Transcript{}, fmt.Errorf("openai status %d: %s", resp.StatusCode, msg)
	}

	var out verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.Transcript{}, fmt.Errorf("decode openai response: %w", err)
	}

	tr := types.Transcript{
		Provider: Name,
		Language: out.Language,
		Origin:   types.OriginClip,
		Text:     strings.TrimSpace(out.Text),
	}
	for _, s := range out.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{Start: s.Start, End: s.End, Text: text})
	}
	return tr, nil
}

func (a *Adapter) buildForm(req types.TranscribeRequest) (io.Reader, string, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"model":           a.model,
		"response_format": "verbose_json",
	}
	if req.Language != "" {
		// The API takes ISO-639-1 codes.
		fields["language"] = strings.ToLower(strings.SplitN(req.Language, "-", 2)[0])
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

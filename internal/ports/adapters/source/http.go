package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

// HTTP downloads direct media URLs.
type HTTP struct {
	client *http.Client
}

func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &HTTP{client: client}
}

func (h *HTTP) Fetch(ctx context.Context, identifier, workDir string) (types.SourceVideo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifier, nil)
	if err != nil {
		return types.SourceVideo{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return types.SourceVideo{}, fmt.Errorf("download %s: %w", identifier, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.SourceVideo{}, fmt.Errorf("download %s: status %d", identifier, resp.StatusCode)
	}

	name := path.Base(req.URL.Path)
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".mp4"
	}
	out := filepath.Join(workDir, "source"+ext)
	if err := writeStream(out, resp.Body); err != nil {
		return types.SourceVideo{}, err
	}
	return types.SourceVideo{ID: identifier, Path: out, Title: strings.TrimSuffix(name, ext)}, nil
}

// writeStream copies r to a temporary file next to p and renames it into
// place, so concurrent fetches of one source never observe a partial file.
func writeStream(p string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".part-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

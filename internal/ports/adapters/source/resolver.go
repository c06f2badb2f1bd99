package source

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

type Kind string

const (
	KindAuto  Kind = "auto"
	KindLocal Kind = "local"
	KindYTDLP Kind = "ytdlp"
	KindHTTP  Kind = "http"
	KindS3    Kind = "s3"
)

func (k Kind) Valid() bool {
	switch k {
	case "", KindAuto, KindLocal, KindYTDLP, KindHTTP, KindS3:
		return true
	}
	return false
}

var platformHosts = []string{
	"youtube.com", "youtu.be", "tiktok.com", "instagram.com", "vimeo.com",
	"twitter.com", "x.com", "twitch.tv", "facebook.com", "kwai.com",
}

// Resolver dispatches to a source variant by identifier, or always to Force when set.
type Resolver struct {
	Force Kind
	Local ports.VideoSource
	YTDLP ports.VideoSource
	HTTP  ports.VideoSource
	S3    ports.VideoSource
}

func (r *Resolver) Fetch(ctx context.Context, identifier, workDir string) (types.SourceVideo, error) {
	kind := r.Force
	if kind == "" || kind == KindAuto {
		kind = Detect(identifier)
	}
	var src ports.VideoSource
	switch kind {
	case KindLocal:
		src = r.Local
	case KindYTDLP:
		src = r.YTDLP
	case KindHTTP:
		src = r.HTTP
	case KindS3:
		src = r.S3
	}
	if src == nil {
		return types.SourceVideo{}, fmt.Errorf("no %s source configured for %q", kind, identifier)
	}
	sv, err := src.Fetch(ctx, identifier, workDir)
	if err != nil {
		return types.SourceVideo{}, err
	}
	if sv.ID == "" {
		sv.ID = identifier
	}
	return sv, nil
}

// Detect picks a source kind from the identifier alone.
func Detect(identifier string) Kind {
	if strings.HasPrefix(identifier, "s3://") {
		return KindS3
	}
	u, err := url.Parse(identifier)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return KindLocal
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range platformHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return KindYTDLP
		}
	}
	switch strings.ToLower(filepath.Ext(u.Path)) {
	case ".mp4", ".mov", ".mkv", ".webm", ".m4v":
		return KindHTTP
	}
	// Unknown pages are left to yt-dlp's generic extractor.
	return KindYTDLP
}

// WorkDirName returns a stable directory name for an identifier.
func WorkDirName(identifier string) string { return idHash(identifier) }

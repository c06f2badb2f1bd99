package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports/adapters/s3store"
	"github.com/forPelevin/clipforge/internal/types"
)

type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// S3 downloads s3://bucket/key sources.
type S3 struct {
	store ObjectGetter
}

func NewS3(store ObjectGetter) *S3 { return &S3{store: store} }

func (s *S3) Fetch(ctx context.Context, identifier, workDir string) (types.SourceVideo, error) {
	if s.store == nil {
		return types.SourceVideo{}, fmt.Errorf("s3 source: no client configured")
	}
	bucket, key, err := s3store.ParseURL(identifier)
	if err != nil {
		return types.SourceVideo{}, err
	}
	body, err := s.store.Get(ctx, bucket, key)
	if err != nil {
		return types.SourceVideo{}, fmt.Errorf("s3 get %s: %w", identifier, err)
	}
	defer body.Close()

	name := path.Base(key)
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".mp4"
	}
	out := filepath.Join(workDir, "source"+ext)
	if err := writeStream(out, body); err != nil {
		return types.SourceVideo{}, err
	}
	return types.SourceVideo{ID: identifier, Path: out, Title: strings.TrimSuffix(name, ext)}, nil
}

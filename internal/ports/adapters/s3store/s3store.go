package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrNotFound is returned by Get when the bucket or key does not exist.
var ErrNotFound = errors.New("s3 object not found")

type Config struct {
	Bucket string
	// Prefix is prepended to every object key, e.g. "clipforge/".
	Prefix string
	Region string
	// Profile selects a named shared config profile.
	Profile string
	// Endpoint overrides the service URL for S3-compatible stores.
	Endpoint     string
	UsePathStyle bool
}

// API is the subset of the SDK client used here.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Store struct {
	api    API
	bucket string
	prefix string
}

// New loads the default AWS config chain with optional overrides from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(c, cfg.Bucket, cfg.Prefix), nil
}

func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

// Put uploads body to bucket/key.
func (s *Store) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := s.api.PutObject(ctx, in)
	return err
}

// Get fetches an object and returns its streaming body. Caller must Close it.
func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NoSuchKey", "NoSuchBucket", "NotFound":
				return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
			}
		}
		return nil, err
	}
	return out.Body, nil
}

// Publish uploads a local artifact under the configured prefix and returns its s3:// URL.
func (s *Store) Publish(ctx context.Context, localPath, key string) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("s3 publish: bucket is empty")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("s3 publish: %w", err)
	}
	defer f.Close()

	fullKey := path.Join(strings.Trim(s.prefix, "/"), filepath.ToSlash(key))
	if err := s.Put(ctx, s.bucket, fullKey, f, contentType(localPath)); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", fullKey, err)
	}
	return "s3://" + s.bucket + "/" + fullKey, nil
}

var artifactTypes = map[string]string{
	".mp4":  "video/mp4",
	".srt":  "application/x-subrip",
	".ass":  "text/x-ssa",
	".jpg":  "image/jpeg",
	".json": "application/json",
}

func contentType(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if ct, ok := artifactTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// ParseURL splits s3://bucket/key.
func ParseURL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %q", raw)
	}
	return bucket, key, nil
}

package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

const keyPrefix = "clipforge:transcript:"

var errMiss = errors.New("cache miss")

// KV is the slice of a key-value store the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type redisKV struct {
	c *redis.Client
}

// NewRedisKV connects to addr; an unreachable server is reported but not fatal.
func NewRedisKV(ctx context.Context, addr, password string, db int) (KV, func() error, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		return redisKV{c: c}, c.Close, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return redisKV{c: c}, c.Close, nil
}

func (r redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errMiss
	}
	return b, err
}

func (r redisKV) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.c.Set(ctx, key, val, ttl).Err()
}

// Cache memoizes a transcriber. Store errors are logged and never fail a transcription.
type Cache struct {
	next ports.Transcriber
	kv   KV
	ttl  time.Duration
	logf func(format string, args ...any)
}

func New(next ports.Transcriber, kv KV, ttl time.Duration, logf func(format string, args ...any)) *Cache {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Cache{next: next, kv: kv, ttl: ttl, logf: logf}
}

func (c *Cache) Name() string { return c.next.Name() }

func (c *Cache) Input() types.InputKind { return c.next.Input() }

func (c *Cache) Transcribe(ctx context.Context, req types.TranscribeRequest) (types.Transcript, error) {
	key, err := c.key(req)
	if err != nil {
		c.logf("transcript cache disabled for %s: %v", c.next.Name(), err)
		return c.next.Transcribe(ctx, req)
	}

	if b, err := c.kv.Get(ctx, key); err == nil {
		var tr types.Transcript
		if err := json.Unmarshal(b, &tr); err == nil {
			return tr, nil
		}
		c.logf("transcript cache: bad entry %s", key)
	} else if !errors.Is(err, errMiss) {
		c.logf("transcript cache get: %v", err)
	}

	tr, err := c.next.Transcribe(ctx, req)
	if err != nil {
		return types.Transcript{}, err
	}
	if b, err := json.Marshal(tr); err == nil {
		if err := c.kv.Set(ctx, key, b, c.ttl); err != nil {
			c.logf("transcript cache set: %v", err)
		}
	}
	return tr, nil
}

func (c *Cache) key(req types.TranscribeRequest) (string, error) {
	base := keyPrefix + c.next.Name() + ":" + req.Language + ":"
	switch c.next.Input() {
	case types.InputAudio:
		sum, err := fileSum(req.AudioPath)
		return base + sum, err
	case types.InputMedia:
		sum, err := fileSum(req.MediaPath)
		return base + sum, err
	default:
		if req.ExternalID == "" {
			return "", errors.New("no external id")
		}
		return base + req.ExternalID, nil
	}
}

func fileSum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

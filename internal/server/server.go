package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/pipeline"
	"github.com/forPelevin/clipforge/internal/ports/adapters/source"
	"github.com/forPelevin/clipforge/internal/types"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// RunFunc executes one run; pipeline.Run in production.
type RunFunc func(ctx context.Context, cfg *config.Config, req pipeline.Request) (pipeline.Output, error)

// Run is the externally visible state of a submitted run.
type Run struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	Status    Status             `json:"status"`
	Error     string             `json:"error,omitempty"`
	RunDir    string             `json:"run_dir,omitempty"`
	Published int                `json:"published"`
	Dropped   int                `json:"dropped"`
	Reports   []types.ClipReport `json:"reports,omitempty"`
	Manifest  *types.Manifest    `json:"manifest,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type Server struct {
	base *config.Config
	run  RunFunc
	logf func(format string, args ...any)
	// ctx bounds background runs; cancelling it aborts them.
	ctx context.Context
	sem chan struct{}
	wg  sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*Run
	now  func() time.Time
}

func New(ctx context.Context, base *config.Config, run RunFunc, logf func(string, ...any)) *Server {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	maxRuns := base.Server.MaxRuns
	if maxRuns <= 0 {
		maxRuns = 1
	}
	return &Server{
		base: base,
		run:  run,
		logf: logf,
		ctx:  ctx,
		sem:  make(chan struct{}, maxRuns),
		runs: map[string]*Run{},
		now:  time.Now,
	}
}

// Router constructs the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	v1 := r.Group("/v1")
	v1.POST("/runs", s.handleCreate)
	v1.GET("/runs", s.handleList)
	v1.GET("/runs/:id", s.handleGet)
	return r
}

type createRequest struct {
	Source     string `json:"source" binding:"required"`
	ClipLength int    `json:"clip_length"`
	Count      int    `json:"count"`
	Aspect     string `json:"aspect"`
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg := *s.base
	if req.ClipLength > 0 {
		cfg.Clips.LengthSec = req.ClipLength
	}
	if req.Count > 0 {
		cfg.Clips.Count = req.Count
	}
	if req.Aspect != "" {
		cfg.Clips.Aspect = req.Aspect
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src := req.Source
	kind := source.Kind(cfg.Source.Kind)
	if kind == "" || kind == source.KindAuto {
		kind = source.Detect(src)
	}
	if kind == source.KindLocal {
		p, err := confineLocal(cfg.Server.LocalRoot, src)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		src = p
	}

	now := s.now()
	r := &Run{ID: uuid.NewString(), Source: src, Status: StatusQueued, CreatedAt: now, UpdatedAt: now}
	s.mu.Lock()
	s.runs[r.ID] = r
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(r.ID, src, &cfg)
	c.JSON(http.StatusAccepted, gin.H{"id": r.ID})
}

// confineLocal resolves a local source against root and rejects paths that
// escape it, symlinks included. An empty root disables local sources.
func confineLocal(root, identifier string) (string, error) {
	if root == "" {
		return "", errors.New("local file sources are disabled; set server.local_root")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = r
	}
	p := identifier
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	p = filepath.Clean(p)
	if r, err := filepath.EvalSymlinks(p); err == nil {
		p = r
	}
	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("source %q is outside server.local_root", identifier)
	}
	return p, nil
}

func (s *Server) handleGet(c *gin.Context) {
	r, ok := s.snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleList(c *gin.Context) {
	s.mu.Lock()
	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		cp.Manifest = nil
		cp.Reports = nil
		out = append(out, cp)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) snapshot(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *r, true
}

func (s *Server) update(id string, fn func(r *Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		fn(r)
		r.UpdatedAt = s.now()
	}
}

// execute waits for a run slot, then runs the pipeline in the background.
func (s *Server) execute(id, src string, cfg *config.Config) {
	defer s.wg.Done()
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		s.update(id, func(r *Run) {
			r.Status = StatusFailed
			r.Error = s.ctx.Err().Error()
		})
		return
	}
	defer func() { <-s.sem }()

	s.update(id, func(r *Run) { r.Status = StatusRunning })
	s.logf("run %s: started (%s)", id, src)

	out, err := s.run(s.ctx, cfg, pipeline.Request{
		Source: src,
		RunID:  id,
		Logf: func(format string, args ...any) {
			s.logf("run "+id+": "+format, args...)
		},
	})
	s.update(id, func(r *Run) {
		r.RunDir = out.RunDir
		r.Published = len(out.Result.Clips)
		r.Dropped = len(out.Result.Manifest.Dropped)
		r.Reports = out.Result.Reports
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
			return
		}
		m := out.Result.Manifest
		r.Status = StatusDone
		r.Manifest = &m
	})
	if err != nil {
		s.logf("run %s: failed: %v", id, err)
		return
	}
	s.logf("run %s: done", id)
}

// Wait blocks until every submitted run has finished.
func (s *Server) Wait() { s.wg.Wait() }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and waits for background runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

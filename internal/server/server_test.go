package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/pipeline"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/usecase"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRunner struct {
	mu      sync.Mutex
	release chan struct{}
	err     error
	cfgs    []config.Config
	active  int
	peak    int
}

func (f *fakeRunner) run(ctx context.Context, cfg *config.Config, req pipeline.Request) (pipeline.Output, error) {
	f.mu.Lock()
	f.cfgs = append(f.cfgs, *cfg)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return pipeline.Output{}, ctx.Err()
		}
	}
	res := usecase.Result{
		Clips: []types.ClipResult{{ID: "001"}},
		Manifest: types.Manifest{
			Input: req.Source,
			Clips: []types.ManifestClip{{ID: "001", File: "clips/001.mp4"}},
		},
	}
	return pipeline.Output{RunID: req.RunID, RunDir: "out/" + req.RunID, Result: res}, f.err
}

func newTestServer(t *testing.T, f *fakeRunner, maxRuns int) (*Server, *gin.Engine) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.MaxRuns = maxRuns
	s := New(context.Background(), cfg, f.run, nil)
	return s, s.Router()
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createRun(t *testing.T, r http.Handler, body string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/v1/runs", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("create: status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" {
		t.Fatal("empty run id")
	}
	return resp.ID
}

func getRun(t *testing.T, r http.Handler, id string) Run {
	t.Helper()
	w := do(t, r, http.MethodGet, "/v1/runs/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status=%d body=%s", w.Code, w.Body.String())
	}
	var run Run
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	return run
}

func waitStatus(t *testing.T, r http.Handler, id string, want Status) Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		run := getRun(t, r, id)
		if run.Status == want {
			return run
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s: status=%s, want %s", id, run.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthz(t *testing.T) {
	_, r := newTestServer(t, &fakeRunner{}, 1)
	w := do(t, r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestCreateRun_CompletesWithManifest(t *testing.T) {
	f := &fakeRunner{}
	s, r := newTestServer(t, f, 2)
	id := createRun(t, r, `{"source":"https://cdn.example.com/talk.mp4","clip_length":15,"count":2,"aspect":"vertical"}`)
	s.Wait()

	run := getRun(t, r, id)
	if run.Status != StatusDone {
		t.Fatalf("status=%s err=%s", run.Status, run.Error)
	}
	if run.Manifest == nil || len(run.Manifest.Clips) != 1 || run.Manifest.Input != "https://cdn.example.com/talk.mp4" {
		t.Fatalf("manifest=%+v", run.Manifest)
	}
	if run.Published != 1 || run.RunDir != "out/"+id {
		t.Fatalf("run=%+v", run)
	}

	if len(f.cfgs) != 1 {
		t.Fatalf("runner called %d times", len(f.cfgs))
	}
	got := f.cfgs[0].Clips
	if got.LengthSec != 15 || got.Count != 2 || got.Aspect != "vertical" {
		t.Fatalf("clip overrides not applied: %+v", got)
	}
}

func TestCreateRun_OverridesDoNotLeakIntoBase(t *testing.T) {
	f := &fakeRunner{}
	s, r := newTestServer(t, f, 1)
	createRun(t, r, `{"source":"https://cdn.example.com/a.mp4","count":7}`)
	createRun(t, r, `{"source":"https://cdn.example.com/b.mp4"}`)
	s.Wait()

	counts := map[int]bool{}
	for _, c := range f.cfgs {
		counts[c.Clips.Count] = true
	}
	if !counts[7] || !counts[config.Default().Clips.Count] {
		t.Fatalf("counts=%v", counts)
	}
}

func TestCreateRun_RejectsInvalidRequests(t *testing.T) {
	_, r := newTestServer(t, &fakeRunner{}, 1)
	cases := []struct {
		name string
		body string
	}{
		{"missing source", `{"count":2}`},
		{"bad json", `{"source":`},
		{"bad aspect", `{"source":"https://cdn.example.com/a.mp4","aspect":"square"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/v1/runs", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateRun_LocalSourcesConfinedToRoot(t *testing.T) {
	f := &fakeRunner{}
	_, r := newTestServer(t, f, 1)
	w := do(t, r, http.MethodPost, "/v1/runs", `{"source":"/etc/passwd"}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "disabled") {
		t.Fatalf("local sources must be disabled without a root: status=%d body=%s", w.Code, w.Body.String())
	}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "talk.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.mp4"), filepath.Join(root, "link.mp4")); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Server.LocalRoot = root
	s := New(context.Background(), cfg, f.run, nil)
	r = s.Router()
	for _, src := range []string{
		"/etc/passwd",
		"../" + filepath.Base(outside) + "/secret.mp4",
		filepath.Join(outside, "secret.mp4"),
		"link.mp4",
	} {
		body, _ := json.Marshal(map[string]string{"source": src})
		if w := do(t, r, http.MethodPost, "/v1/runs", string(body)); w.Code != http.StatusBadRequest {
			t.Fatalf("source %q: status=%d body=%s", src, w.Code, w.Body.String())
		}
	}

	id := createRun(t, r, `{"source":"talk.mp4"}`)
	s.Wait()
	run := getRun(t, r, id)
	wantRoot, _ := filepath.EvalSymlinks(root)
	if run.Status != StatusDone || run.Source != filepath.Join(wantRoot, "talk.mp4") {
		t.Fatalf("run=%+v", run)
	}
	if len(f.cfgs) != 1 {
		t.Fatalf("rejected sources must not run, got %d runs", len(f.cfgs))
	}
}

func TestGetRun_Unknown(t *testing.T) {
	_, r := newTestServer(t, &fakeRunner{}, 1)
	w := do(t, r, http.MethodGet, "/v1/runs/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRun_FailureIsReported(t *testing.T) {
	f := &fakeRunner{err: errors.New("boom")}
	s, r := newTestServer(t, f, 1)
	id := createRun(t, r, `{"source":"https://cdn.example.com/a.mp4"}`)
	s.Wait()

	run := getRun(t, r, id)
	if run.Status != StatusFailed || run.Error != "boom" {
		t.Fatalf("run=%+v", run)
	}
	if run.Manifest != nil {
		t.Fatal("failed run must not expose a manifest")
	}
}

func TestMaxRuns_QueuesExtraRuns(t *testing.T) {
	f := &fakeRunner{release: make(chan struct{})}
	s, r := newTestServer(t, f, 1)

	first := createRun(t, r, `{"source":"https://cdn.example.com/a.mp4"}`)
	waitStatus(t, r, first, StatusRunning)
	second := createRun(t, r, `{"source":"https://cdn.example.com/b.mp4"}`)

	time.Sleep(20 * time.Millisecond)
	if got := getRun(t, r, second).Status; got != StatusQueued {
		t.Fatalf("second run status=%s, want queued", got)
	}

	close(f.release)
	s.Wait()
	for _, id := range []string{first, second} {
		if got := getRun(t, r, id).Status; got != StatusDone {
			t.Fatalf("run %s status=%s", id, got)
		}
	}
	if f.peak != 1 {
		t.Fatalf("peak concurrent runs=%d, want 1", f.peak)
	}
}

func TestListRuns(t *testing.T) {
	s, r := newTestServer(t, &fakeRunner{}, 2)
	createRun(t, r, `{"source":"https://cdn.example.com/a.mp4"}`)
	createRun(t, r, `{"source":"https://cdn.example.com/b.mp4"}`)
	s.Wait()

	w := do(t, r, http.MethodGet, "/v1/runs", "")
	var resp struct {
		Runs []Run `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 2 {
		t.Fatalf("runs=%d", len(resp.Runs))
	}
	for _, run := range resp.Runs {
		if run.Manifest != nil {
			t.Fatal("list must omit manifests")
		}
	}
}

func TestCancelledContext_FailsQueuedRuns(t *testing.T) {
	f := &fakeRunner{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.Default()
	cfg.Server.MaxRuns = 1
	s := New(ctx, cfg, f.run, nil)
	r := s.Router()

	first := createRun(t, r, `{"source":"https://cdn.example.com/a.mp4"}`)
	waitStatus(t, r, first, StatusRunning)
	second := createRun(t, r, `{"source":"https://cdn.example.com/b.mp4"}`)
	cancel()
	s.Wait()

	for _, id := range []string{first, second} {
		if got := getRun(t, r, id).Status; got != StatusFailed {
			t.Fatalf("run %s status=%s, want failed", id, got)
		}
	}
}

package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/forPelevin/clipforge/internal/types"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"s3://bucket/talk.mp4", KindS3},
		{"https://www.youtube.com/watch?v=abc", KindYTDLP},
		{"https://youtu.be/abc", KindYTDLP},
		{"https://vm.tiktok.com/ZM123/", KindYTDLP},
		{"https://cdn.example.com/media/talk.MP4", KindHTTP},
		{"https://example.com/some/page", KindYTDLP},
		{"/home/me/videos/talk.mp4", KindLocal},
		{"talk.mp4", KindLocal},
		{`C:\videos\talk.mp4`, KindLocal},
		{"ftp://example.com/talk.mp4", KindLocal},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Detect(tt.in); got != tt.want {
				t.Fatalf("Detect(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "My Talk.mp4")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sv, err := Local{}.Fetch(context.Background(), p, "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sv.Path != p || sv.Title != "My Talk" {
		t.Fatalf("unexpected source %+v", sv)
	}
	if _, err := (Local{}).Fetch(context.Background(), dir, ""); err == nil {
		t.Fatalf("expected directory to be rejected")
	}
	if _, err := (Local{}).Fetch(context.Background(), filepath.Join(dir, "nope.mp4"), ""); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/clip.webm" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "webm-bytes")
	}))
	defer srv.Close()

	dir := t.TempDir()
	sv, err := NewHTTP(srv.Client()).Fetch(context.Background(), srv.URL+"/media/clip.webm", dir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sv.Path != filepath.Join(dir, "source.webm") || sv.Title != "clip" {
		t.Fatalf("unexpected source %+v", sv)
	}
	if b, _ := os.ReadFile(sv.Path); string(b) != "webm-bytes" {
		t.Fatalf("unexpected content %q", b)
	}

	if _, err := NewHTTP(srv.Client()).Fetch(context.Background(), srv.URL+"/missing.mp4", dir); err == nil {
		t.Fatalf("expected status error")
	}
}

// fakeYTDLP writes the files yt-dlp would produce for the -o template.
func fakeYTDLP(info string, gotArgs *[]string) func(context.Context, string, ...string) ([]byte, error) {
	return func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if gotArgs != nil {
			*gotArgs = args
		}
		i := slices.Index(args, "-o")
		if i < 0 || i+1 >= len(args) {
			return nil, errors.New("no output template")
		}
		base := strings.TrimSuffix(args[i+1], ".%(ext)s")
		if err := os.WriteFile(base+".mp4", []byte("mp4"), 0o644); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(base+".info.json", []byte(info), 0o644)
	}
}

func TestYTDLP(t *testing.T) {
	dir := t.TempDir()
	y := NewYTDLP("")
	var gotArgs []string
	y.run = fakeYTDLP(`{"id":"abc123","title":"Great Talk","description":"about things","extractor_key":"Youtube"}`, &gotArgs)

	sv, err := y.Fetch(context.Background(), "https://youtu.be/abc123", dir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sv.Path != filepath.Join(dir, "source.mp4") {
		t.Fatalf("unexpected path %q", sv.Path)
	}
	if sv.ExternalID != "abc123" || sv.Title != "Great Talk" || sv.Description != "about things" {
		t.Fatalf("unexpected source %+v", sv)
	}
	if gotArgs[len(gotArgs)-1] != "https://youtu.be/abc123" || !slices.Contains(gotArgs, "--no-playlist") {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if o := gotArgs[slices.Index(gotArgs, "-o")+1]; filepath.Dir(o) == dir {
		t.Fatalf("download should not write straight into the work dir: %s", o)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.IsDir() {
			t.Fatalf("download dir left behind: %s", e.Name())
		}
	}
}

func TestYTDLP_ConcurrentFetchesShareWorkDir(t *testing.T) {
	dir := t.TempDir()
	y := NewYTDLP("")
	y.run = fakeYTDLP(`{"id":"abc123","title":"Great Talk","extractor_key":"Youtube"}`, nil)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = y.Fetch(context.Background(), "https://youtu.be/abc123", dir)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if b, _ := os.ReadFile(filepath.Join(dir, "source.mp4")); string(b) != "mp4" {
		t.Fatalf("unexpected content %q", b)
	}
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		return 0, errors.New("connection reset")
	}
	r.n++
	return copy(p, "partial"), nil
}

func TestWriteStream_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "source.mp4")
	if err := os.WriteFile(dst, []byte("complete"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writeStream(dst, &failingReader{}); err == nil {
		t.Fatalf("expected write error")
	}
	if b, _ := os.ReadFile(dst); string(b) != "complete" {
		t.Fatalf("existing source clobbered: %q", b)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary file left behind: %v", entries)
	}
}

func TestYTDLP_Failure(t *testing.T) {
	y := NewYTDLP("")
	y.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("ERROR: Video unavailable"), errors.New("exit status 1")
	}
	if _, err := y.Fetch(context.Background(), "https://youtu.be/x", t.TempDir()); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeGetter map[string]string

func (f fakeGetter) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	b, ok := f[bucket+"/"+key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewBufferString(b)), nil
}

func TestS3(t *testing.T) {
	dir := t.TempDir()
	s := NewS3(fakeGetter{"in/talks/keynote.mov": "mov"})
	sv, err := s.Fetch(context.Background(), "s3://in/talks/keynote.mov", dir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sv.Path != filepath.Join(dir, "source.mov") || sv.Title != "keynote" {
		t.Fatalf("unexpected source %+v", sv)
	}
	if _, err := s.Fetch(context.Background(), "s3://in/missing.mp4", dir); err == nil {
		t.Fatalf("expected error")
	}
}

type stubSource struct {
	name  string
	calls int
}

func (s *stubSource) Fetch(context.Context, string, string) (types.SourceVideo, error) {
	s.calls++
	return types.SourceVideo{Path: s.name}, nil
}

func TestResolver(t *testing.T) {
	local, ytdlp := &stubSource{name: "local"}, &stubSource{name: "ytdlp"}
	r := &Resolver{Local: local, YTDLP: ytdlp}

	sv, err := r.Fetch(context.Background(), "https://youtube.com/watch?v=1", "")
	if err != nil || sv.Path != "ytdlp" || sv.ID != "https://youtube.com/watch?v=1" {
		t.Fatalf("unexpected result %+v %v", sv, err)
	}

	r.Force = KindLocal
	if sv, err := r.Fetch(context.Background(), "https://youtube.com/watch?v=1", ""); err != nil || sv.Path != "local" {
		t.Fatalf("expected forced local, got %+v %v", sv, err)
	}

	r.Force = ""
	if _, err := r.Fetch(context.Background(), "s3://b/k.mp4", ""); err == nil {
		t.Fatalf("expected error for unconfigured s3 source")
	}
}

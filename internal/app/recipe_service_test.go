package app

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pantrycam/internal/imaging"
	"pantrycam/internal/model"
	"pantrycam/internal/recipe"
)

type fakeAnalyzer struct {
	result   *recipe.Result
	err      error
	calls    int
	sawFile  bool
	path     string
	deadline time.Time
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string) (*recipe.Result, error) {
	f.calls++
	f.path = path
	f.deadline, _ = ctx.Deadline()
	if _, err := os.Stat(path); err == nil {
		f.sawFile = true
	}
	return f.result, f.err
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) SaveResult(_ context.Context, sessionID, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = html
	return nil
}

func (m *memoryStore) GetResult(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	html, ok := m.data[sessionID]
	return html, ok, nil
}

type recordingPublisher struct {
	records []model.AnalysisRecord
}

func (p *recordingPublisher) Publish(_ context.Context, record model.AnalysisRecord) error {
	p.records = append(p.records, record)
	return nil
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, *imaging.Normalized) error {
	return errors.New("bucket unavailable")
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty upload dir, found %d entries", len(entries))
	}
}

func successResult() *recipe.Result {
	return &recipe.Result{
		Markdown: "# Title",
		HTML:     "<h1>Title</h1>\n",
		Method:   recipe.MethodChat,
		Model:    "gemini-1.5-flash",
		Image:    &imaging.Normalized{Data: []byte{1, 2, 3}, MIMEType: "image/png", Width: 4, Height: 4},
		Duration: 120 * time.Millisecond,
	}
}

func TestProcessUploadRejections(t *testing.T) {
	tests := []struct {
		name string
		file func(t *testing.T) *multipart.FileHeader
		want error
	}{
		{name: "missing field", file: func(*testing.T) *multipart.FileHeader { return nil }, want: ErrNoFilePart},
		{name: "empty filename", file: func(*testing.T) *multipart.FileHeader { return &multipart.FileHeader{} }, want: ErrNoSelectedFile},
		{name: "gif", file: func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "cat.gif", []byte("GIF89a")) }, want: ErrFileTypeNotAllowed},
		{name: "no extension", file: func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "png", []byte("x")) }, want: ErrFileTypeNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			analyzer := &fakeAnalyzer{result: successResult()}
			svc := NewRecipeService(analyzer, newMemoryStore(), dir, []string{"png", "jpg", "jpeg"}, nil)

			_, err := svc.ProcessUpload(context.Background(), "sid", tt.file(t))
			if !errors.Is(err, tt.want) {
				t.Fatalf("ProcessUpload error = %v, want %v", err, tt.want)
			}
			if analyzer.calls != 0 {
				t.Errorf("analyzer should not be called, got %d calls", analyzer.calls)
			}
			assertEmptyDir(t, dir)
		})
	}
}

func TestProcessUploadSuccessRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	store := newMemoryStore()
	analyzer := &fakeAnalyzer{result: successResult()}
	svc := NewRecipeService(analyzer, store, dir, []string{"png"}, nil)

	res, err := svc.ProcessUpload(context.Background(), "sid-1", fileHeader(t, "../My Fridge.PNG", []byte("pixels")))
	if err != nil {
		t.Fatalf("ProcessUpload returned error: %v", err)
	}
	if res.HTML != "<h1>Title</h1>\n" {
		t.Errorf("html = %q", res.HTML)
	}
	if !analyzer.sawFile {
		t.Error("analyzer did not see the saved file")
	}
	if analyzer.path != filepath.Join(dir, "My_Fridge.PNG") {
		t.Errorf("saved path = %q", analyzer.path)
	}
	assertEmptyDir(t, dir)

	html, err := svc.Result(context.Background(), "sid-1")
	if err != nil || html != res.HTML {
		t.Errorf("Result = %q, %v", html, err)
	}
}

func TestProcessUploadFailureRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	store := newMemoryStore()
	analyzer := &fakeAnalyzer{err: &recipe.InvocationError{Primary: errors.New("a"), Fallback: errors.New("b")}}
	svc := NewRecipeService(analyzer, store, dir, []string{"png"}, nil)

	_, err := svc.ProcessUpload(context.Background(), "sid-2", fileHeader(t, "fridge.png", []byte("pixels")))
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
	var invErr *recipe.InvocationError
	if !errors.As(err, &invErr) {
		t.Errorf("invocation error should stay reachable: %v", err)
	}
	assertEmptyDir(t, dir)

	if _, err := svc.Result(context.Background(), "sid-2"); !errors.Is(err, ErrNoResult) {
		t.Errorf("failed analysis must not store a result, got %v", err)
	}
}

func TestProcessUploadSideEffects(t *testing.T) {
	publisher := &recordingPublisher{}
	svc := NewRecipeService(
		&fakeAnalyzer{result: successResult()},
		newMemoryStore(),
		t.TempDir(),
		[]string{"png"},
		nil,
		WithPublisher(publisher),
		WithArchive(failingArchive{}),
	)

	if _, err := svc.ProcessUpload(context.Background(), "sid-3", fileHeader(t, "fridge.png", []byte("pixels"))); err != nil {
		t.Fatalf("side effect failures must not fail the upload: %v", err)
	}
	if len(publisher.records) != 1 {
		t.Fatalf("expected one published record, got %d", len(publisher.records))
	}
	rec := publisher.records[0]
	if rec.SessionID != "sid-3" || rec.Filename != "fridge.png" || rec.Method != "chat" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.DurationMS != 120 || rec.SizeBytes != 3 || rec.ObjectKey != "" {
		t.Errorf("unexpected record metrics: %+v", rec)
	}
}

func TestResultWithoutUpload(t *testing.T) {
	svc := NewRecipeService(&fakeAnalyzer{}, newMemoryStore(), t.TempDir(), nil, nil)
	for _, sid := range []string{"", "unknown"} {
		if _, err := svc.Result(context.Background(), sid); !errors.Is(err, ErrNoResult) {
			t.Errorf("Result(%q) error = %v, want ErrNoResult", sid, err)
		}
	}
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	if got := ObjectKey(at, "abc", "fridge.png"); got != "2024/03/09/abc/fridge.png" {
		t.Errorf("ObjectKey = %q", got)
	}
}

func TestProcessUploadBoundsWholeAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{result: successResult()}
	svc := NewRecipeService(analyzer, newMemoryStore(), t.TempDir(), []string{"png"}, nil,
		WithAnalysisTimeout(3*time.Minute))

	start := time.Now()
	if _, err := svc.ProcessUpload(context.Background(), "sid-4", fileHeader(t, "fridge.png", []byte("pixels"))); err != nil {
		t.Fatalf("ProcessUpload returned error: %v", err)
	}
	if analyzer.deadline.IsZero() {
		t.Fatal("analysis should run under a deadline")
	}
	if got := analyzer.deadline.Sub(start); got < 3*time.Minute-time.Second || got > 3*time.Minute+time.Second {
		t.Errorf("deadline is %v after start, want about 3m", got)
	}
}

func TestProcessUploadWithoutTimeoutKeepsCallerContext(t *testing.T) {
	analyzer := &fakeAnalyzer{result: successResult()}
	svc := NewRecipeService(analyzer, newMemoryStore(), t.TempDir(), []string{"png"}, nil)

	if _, err := svc.ProcessUpload(context.Background(), "sid-5", fileHeader(t, "fridge.png", []byte("pixels"))); err != nil {
		t.Fatalf("ProcessUpload returned error: %v", err)
	}
	if !analyzer.deadline.IsZero() {
		t.Errorf("unexpected deadline %v", analyzer.deadline)
	}
}

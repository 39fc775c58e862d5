package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pantrycam/internal/config"
	"pantrycam/internal/imaging"
)

// fakeS3 answers the handful of S3 calls the archive makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	buckets map[string]bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
	case r.Method == http.MethodHead && key == "":
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key == "":
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = string(body)
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestImageArchiveCreatesBucketAndStoresImage(t *testing.T) {
	s3 := &fakeS3{objects: map[string]string{}, types: map[string]string{}, buckets: map[string]bool{}}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	archive, err := NewImageArchive(context.Background(), config.ArchiveConfig{
		Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
		AccessKeyID:     "access",
		SecretAccessKey: "secret-value",
		Bucket:          "pantry-photos",
	})
	if err != nil {
		t.Fatalf("NewImageArchive returned error: %v", err)
	}
	if !s3.buckets["pantry-photos"] {
		t.Fatal("bucket should be created")
	}

	img := &imaging.Normalized{Data: []byte("png-bytes"), MIMEType: "image/png"}
	if err := archive.Put(context.Background(), "2024/01/02/sid/fridge.png", img); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	// plain http uploads may arrive aws-chunked, so only look for the payload
	if got := s3.objects["pantry-photos/2024/01/02/sid/fridge.png"]; !strings.Contains(got, "png-bytes") {
		t.Errorf("stored object = %q", got)
	}
	if got := s3.types["pantry-photos/2024/01/02/sid/fridge.png"]; got != "image/png" {
		t.Errorf("content type = %q", got)
	}
	if err := archive.Ping(context.Background()); err != nil {
		t.Errorf("Ping returned error: %v", err)
	}
}

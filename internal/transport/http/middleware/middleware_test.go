package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pantrycam/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	called := false
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/upload", func(c *gin.Context) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if called {
		t.Error("handler must not run")
	}
}

func TestBodyLimitCapsStreamingBody(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/upload", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	// io.MultiReader hides the length, so the request is sent without Content-Length.
	body := io.MultiReader(bytes.NewReader([]byte("0123456789")))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestBodyLimitPassesSmallBody(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(64))
	r.POST("/upload", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, string(b))
	})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("small"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "small" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSessionsMiddleware(t *testing.T) {
	m, err := session.NewManager("secret", "pc", time.Hour, false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	r := gin.New()
	r.Use(Sessions(m))
	r.GET("/", func(c *gin.Context) {
		s := CurrentSession(c)
		if s == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		s.AddFlash("hi")
		if err := SaveSession(c); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, s.ID)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatal("expected session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	got := m.Load(req)
	if got.ID != rec.Body.String() {
		t.Errorf("session id = %q, want %q", got.ID, rec.Body.String())
	}
	if flashes := got.PopFlashes(); len(flashes) != 1 || flashes[0] != "hi" {
		t.Errorf("flashes = %v", flashes)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/ok", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Errorf("levels = %v, %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["path"] != "/missing" {
		t.Errorf("path field = %v", entries[1].ContextMap()["path"])
	}
}

// Package session keeps a small signed cookie per browser: a random session
// ID plus pending flash messages. Larger values live server side keyed by ID.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

var ErrEmptySecret = errors.New("session secret is empty")

const keyInfo = "pantrycam session cookie"

type Session struct {
	ID      string
	flashes []string
	isNew   bool
}

// IsNew reports whether the session was created for this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

func (s *Session) AddFlash(msg string) {
	s.flashes = append(s.flashes, msg)
}

// PopFlashes returns the pending flashes and clears them.
func (s *Session) PopFlashes() []string {
	out := s.flashes
	s.flashes = nil
	return out
}

type claims struct {
	SessionID string   `json:"sid"`
	Flashes   []string `json:"flashes,omitempty"`
	jwt.RegisteredClaims
}

type Manager struct {
	key        []byte
	cookieName string
	maxAge     time.Duration
	secure     bool
	now        func() time.Time
}

func NewManager(secret, cookieName string, maxAge time.Duration, secure bool) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key failed: %w", err)
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Manager{
		key:        key,
		cookieName: cookieName,
		maxAge:     maxAge,
		secure:     secure,
		now:        time.Now,
	}, nil
}

// Load returns the session carried by r. A missing, expired or tampered
// cookie yields a fresh session with a new ID.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return m.fresh()
	}

	var c claims
	_, err = jwt.ParseWithClaims(
		cookie.Value,
		&c,
		m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || c.SessionID == "" {
		return m.fresh()
	}
	return &Session{ID: c.SessionID, flashes: c.Flashes}
}

// Save writes s back as a signed cookie. It must run before the response
// status is written.
func (m *Manager) Save(w http.ResponseWriter, s *Session) error {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: s.ID,
		Flashes:   s.flashes,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return fmt.Errorf("sign session failed: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.isNew = false
	return nil
}

func (m *Manager) keyFunc(*jwt.Token) (interface{}, error) {
	return m.key, nil
}

func (m *Manager) fresh() *Session {
	return &Session{ID: uuid.NewString(), isNew: true}
}

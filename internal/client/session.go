package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/fin-keeper/internal/auth"
)

// ErrNoSession means no usable token is stored.
var ErrNoSession = errors.New("no valid token (login required)")

// Session is the stored identity of the local user.
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      uuid.UUID `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionFile is the token file name inside the data directory.
const SessionFile = "token.json"

// NewSession derives the user id and expiry from a token's claims.
func NewSession(token string) (Session, error) {
	id, exp, err := auth.Inspect(token)
	if err != nil {
		return Session{}, fmt.Errorf("inspect token: %w", err)
	}
	return Session{AccessToken: token, UserID: id, ExpiresAt: exp}, nil
}

// SaveSession writes s to <dir>/token.json with owner-only permissions.
func SaveSession(dir string, s Session) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, SessionFile), b, 0o600)
}

// LoadSession reads the stored session; expired or missing sessions yield ErrNoSession.
func LoadSession(dir string, now time.Time) (Session, error) {
	b, err := os.ReadFile(filepath.Join(dir, SessionFile))
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if s.AccessToken == "" || s.UserID == uuid.Nil {
		return Session{}, ErrNoSession
	}
	if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
		return Session{}, ErrNoSession
	}
	return s, nil
}

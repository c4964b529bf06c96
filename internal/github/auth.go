package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token for API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a personal access token or a workflow GITHUB_TOKEN.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// AppTokenSource authenticates as a GitHub App installation: it signs a
// short-lived app JWT (RS256) and exchanges it for an installation token,
// which is cached until shortly before it expires.
type AppTokenSource struct {
	baseURL        string
	appID          int64
	installationID int64
	key            *rsa.PrivateKey
	http           *http.Client
	now            func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewAppTokenSource(baseURL string, appID, installationID int64, pemKey []byte) (*AppTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}
	return &AppTokenSource{
		baseURL:        strings.TrimRight(baseURL, "/"),
		appID:          appID,
		installationID: installationID,
		key:            key,
		http:           &http.Client{Timeout: 30 * time.Second},
		now:            time.Now,
	}, nil
}

// NewAppTokenSourceFromFile reads the PEM private key from path.
func NewAppTokenSourceFromFile(baseURL string, appID, installationID int64, path string) (*AppTokenSource, error) {
	pemKey, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app private key: %w", err)
	}
	return NewAppTokenSource(baseURL, appID, installationID, pemKey)
}

// AppJWT returns a signed app JWT valid for nine minutes. iat is backdated
// a minute to absorb clock drift.
func (s *AppTokenSource) AppJWT() (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(s.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	})
	return token.SignedString(s.key)
}

func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(time.Minute).Before(s.expires) {
		return s.token, nil
	}

	appJWT, err := s.AppJWT()
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}

	path := fmt.Sprintf("/app/installations/%d/access_tokens", s.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &APIError{Method: http.MethodPost, Path: path, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var payload struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode installation token: %w", err)
	}

	s.token = payload.Token
	s.expires = payload.ExpiresAt
	return s.token, nil
}

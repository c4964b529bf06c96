package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return key, pemKey
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestAppTokenSource_ExchangesAndCaches(t *testing.T) {
	key, pemKey := testKey(t)

	var exchanges atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		assert.Equal(t, "/app/installations/99/access_tokens", r.URL.Path)

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
			jwt.WithValidMethods([]string{"RS256"}))
		assert.NoError(t, err)
		assert.Equal(t, "12", claims.Issuer)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"ghs_x","expires_at":"` + time.Now().Add(time.Hour).UTC().Format(time.RFC3339) + `"}`))
	}))
	defer srv.Close()

	src, err := NewAppTokenSource(srv.URL, 12, 99, pemKey)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ghs_x", tok)
	}
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestAppTokenSource_RefreshesNearExpiry(t *testing.T) {
	_, pemKey := testKey(t)

	var exchanges atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"t","expires_at":"` + time.Now().Add(30*time.Second).UTC().Format(time.RFC3339) + `"}`))
	}))
	defer srv.Close()

	src, err := NewAppTokenSource(srv.URL, 1, 2, pemKey)
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	require.NoError(t, err)
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), exchanges.Load())
}

func TestAppTokenSource_Rejected(t *testing.T) {
	_, pemKey := testKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src, err := NewAppTokenSource(srv.URL, 1, 2, pemKey)
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestNewAppTokenSource_BadKey(t *testing.T) {
	_, err := NewAppTokenSource("http://x", 1, 2, []byte("not a key"))
	require.Error(t, err)
}

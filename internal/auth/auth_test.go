package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen-backend/internal/config"
)

const testProject = "lumen-test"

func selfSignedPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

type certServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newCertServer(t *testing.T, certs map[string]string) *certServer {
	t.Helper()
	cs := &certServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		_ = json.NewEncoder(w).Encode(certs)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func firebaseClaims(uid string, now time.Time) *Claims {
	return &Claims{
		Email:    uid + "@example.com",
		AuthTime: now.Add(-time.Minute).Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerPrefix + testProject,
			Audience:  jwt.ClaimStrings{testProject},
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestFirebaseVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := newCertServer(t, map[string]string{"kid-1": selfSignedPEM(t, key)})
	v := NewFirebaseVerifier(testProject, srv.URL, srv.Client())
	now := time.Now()

	t.Run("valid token", func(t *testing.T) {
		claims, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", firebaseClaims("uid-1", now)))
		require.NoError(t, err)
		assert.Equal(t, "uid-1", claims.UID())
		assert.Equal(t, "uid-1@example.com", claims.Email)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := firebaseClaims("uid-1", now)
		c.Audience = jwt.ClaimStrings{"someone-else"}
		_, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := firebaseClaims("uid-1", now)
		c.Issuer = "https://evil.example.com"
		_, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		c := firebaseClaims("uid-1", now.Add(-3*time.Hour))
		_, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signRS256(t, key, "kid-2", firebaseClaims("uid-1", now)))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("signed by another key", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signRS256(t, otherKey, "kid-1", firebaseClaims("uid-1", now)))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty subject", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", firebaseClaims("", now)))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("auth time in the future", func(t *testing.T) {
		c := firebaseClaims("uid-1", now)
		c.AuthTime = now.Add(time.Hour).Unix()
		_, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("hs256 rejected", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, firebaseClaims("uid-1", now)).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestFirebaseVerifierCachesKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newCertServer(t, map[string]string{"kid-1": selfSignedPEM(t, key)})

	now := time.Now()
	v := NewFirebaseVerifier(testProject, srv.URL, srv.Client())
	v.now = func() time.Time { return now }

	token := signRS256(t, key, "kid-1", firebaseClaims("uid-1", now))
	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), token)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.hits.Load())

	// Past max-age the certificates are fetched again.
	now = now.Add(2 * time.Hour)
	token = signRS256(t, key, "kid-1", firebaseClaims("uid-1", now))
	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestFirebaseVerifierLimitsRefreshes(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newCertServer(t, map[string]string{"kid-1": selfSignedPEM(t, key)})

	now := time.Now()
	var clock sync.Mutex
	v := NewFirebaseVerifier(testProject, srv.URL, srv.Client())
	v.now = func() time.Time {
		clock.Lock()
		defer clock.Unlock()
		return now
	}

	_, err = v.Verify(context.Background(), signRS256(t, key, "kid-1", firebaseClaims("uid-1", now)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), signRS256(t, key, "bogus", firebaseClaims("uid-1", now)))
			assert.ErrorIs(t, err, ErrInvalidToken)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), srv.hits.Load())

	// After the interval an unknown kid may pick up rotated certificates.
	clock.Lock()
	now = now.Add(2 * minRefreshInterval)
	clock.Unlock()
	_, err = v.Verify(context.Background(), signRS256(t, key, "bogus", firebaseClaims("uid-1", now)))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestFirebaseVerifierSharesConcurrentFetches(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := selfSignedPEM(t, key)

	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"kid-1": pemKey})
	}))
	t.Cleanup(srv.Close)
	v := NewFirebaseVerifier(testProject, srv.URL, srv.Client())
	token := signRS256(t, key, "kid-1", firebaseClaims("uid-1", time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), token)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestFirebaseVerifierFetchFailureIsUnavailable(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	v := NewFirebaseVerifier(testProject, srv.URL, srv.Client())
	token := signRS256(t, key, "kid-1", firebaseClaims("uid-1", time.Now()))

	for i := 0; i < 3; i++ {
		_, err = v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrKeysUnavailable)
		assert.NotErrorIs(t, err, ErrInvalidToken)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 19*time.Second, maxAge("public, max-age=19, must-revalidate"))
	assert.Equal(t, defaultKeysTTL, maxAge("no-cache"))
	assert.Equal(t, defaultKeysTTL, maxAge("max-age=abc"))
}

func TestDevVerifier(t *testing.T) {
	v := NewDevVerifier("dev-secret")

	token, err := GenerateDevToken("dev-secret", "uid-9", "nine@example.com", "Nine", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "uid-9", claims.UID())
	assert.Equal(t, "Nine", claims.Name)

	bad, err := GenerateDevToken("other-secret", "uid-9", "", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateDevToken("dev-secret", "uid-9", "", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifier(t *testing.T) {
	_, err := NewVerifier(config.FirebaseConfig{})
	assert.Error(t, err)

	v, err := NewVerifier(config.FirebaseConfig{DevSecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &DevVerifier{}, v)

	v, err = NewVerifier(config.FirebaseConfig{ProjectID: testProject, CertsURL: "http://127.0.0.1:1", DevSecret: "s"})
	require.NoError(t, err)

	// Firebase lookup fails, the dev secret still works.
	token, err := GenerateDevToken("s", "uid-1", "", "", time.Hour)
	require.NoError(t, err)
	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.UID())
}

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	issuerPrefix   = "https://securetoken.google.com/"
	defaultKeysTTL = time.Hour
	clockSkew      = 30 * time.Second
	// Unknown kids trigger at most one certificate fetch per interval.
	minRefreshInterval = time.Minute
)

// FirebaseVerifier checks Firebase ID tokens against Google's published
// signing certificates. Certificates are cached until their max-age expires.
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *http.Client
	now       func() time.Time

	fetches singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expires   time.Time
	attempted time.Time
}

func NewFirebaseVerifier(projectID, certsURL string, client *http.Client) *FirebaseVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &FirebaseVerifier{
		projectID: projectID,
		certsURL:  certsURL,
		client:    client,
		now:       time.Now,
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, ErrUnknownKey
			}
			return v.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(v.now),
	)
	if errors.Is(err, ErrKeysUnavailable) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	if claims.AuthTime > v.now().Add(clockSkew).Unix() {
		return nil, fmt.Errorf("%w: auth_time in the future", ErrInvalidToken)
	}
	return claims, nil
}

// key looks up a signing key, fetching certificates when the cache has
// expired. A kid missing from a fresh cache is refetched at most once per
// minRefreshInterval, and concurrent fetches share one request.
func (v *FirebaseVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := v.now()
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := now.Before(v.expires)
	throttled := now.Sub(v.attempted) < minRefreshInterval
	empty := len(v.keys) == 0
	v.mu.RUnlock()

	switch {
	case ok && fresh:
		return key, nil
	case throttled && ok:
		// Expired, but a fetch just failed; keep using the old set.
		return key, nil
	case throttled && empty:
		return nil, fmt.Errorf("%w: no certificates cached", ErrKeysUnavailable)
	case throttled:
		return nil, ErrUnknownKey
	}

	_, err, _ := v.fetches.Do("certs", func() (interface{}, error) {
		return nil, v.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, ErrUnknownKey
}

func (v *FirebaseVerifier) refresh(ctx context.Context) error {
	v.mu.RLock()
	recent := v.now().Sub(v.attempted) < minRefreshInterval
	empty := len(v.keys) == 0
	v.mu.RUnlock()
	if recent {
		// A fetch finished while this caller was waiting to start one.
		if empty {
			return fmt.Errorf("%w: no certificates cached", ErrKeysUnavailable)
		}
		return nil
	}

	keys, ttl, err := v.fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.attempted = v.now()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	v.keys = keys
	v.expires = v.now().Add(ttl)
	return nil
}

func (v *FirebaseVerifier) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch signing certificates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch signing certificates: unexpected status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, 0, fmt.Errorf("decode signing certificates: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, 0, fmt.Errorf("parse certificate %s: %w", kid, err)
		}
		keys[kid] = key
	}
	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

// maxAge reads max-age from a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, part := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultKeysTTL
}

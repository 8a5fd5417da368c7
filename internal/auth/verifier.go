package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a token is missing, malformed, expired,
// or was not issued by the configured identity provider.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the verified subject the identity provider vouches for.
// UserID is opaque to the rest of the system.
type Identity struct {
	UserID string
	Email  string
}

// Verifier checks an ID token and resolves the identity behind it.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims are the ID-token claims this service cares about.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier verifies RS256 ID tokens issued by a Firebase-style identity
// provider. Signing certificates are fetched from certsURL and cached; the
// provider rotates them, so the cache expires and refetches.
type TokenVerifier struct {
	issuer     string
	audience   string
	certsURL   string
	httpClient *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	cacheTTL  time.Duration
}

// NewTokenVerifier creates a verifier for the given provider project.
// issuer and audience follow the provider's ID-token conventions
// (e.g. issuer "https://securetoken.google.com/<project>", audience "<project>").
func NewTokenVerifier(issuer, audience, certsURL string, client *http.Client) *TokenVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenVerifier{
		issuer:     issuer,
		audience:   audience,
		certsURL:   certsURL,
		httpClient: client,
		cacheTTL:   time.Hour,
	}
}

// Verify parses and validates the token and returns the identity it carries.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

func (v *TokenVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < v.cacheTTL {
		v.mu.RUnlock()
		return key, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < v.cacheTTL {
		return key, nil
	}

	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	v.keys = keys
	v.fetchedAt = time.Now()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("no signing certificate for kid %q", kid)
	}
	return key, nil
}

// fetchKeys downloads the provider's certificate map (kid -> PEM x509 cert)
// and extracts the RSA public keys.
func (v *TokenVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching signing certificates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certificate endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading certificate response: %w", err)
	}

	var pemCerts map[string]string
	if err := json.Unmarshal(body, &pemCerts); err != nil {
		return nil, fmt.Errorf("parsing certificate response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pemCerts))
	for kid, pemCert := range pemCerts {
		block, _ := pem.Decode([]byte(pemCert))
		if block == nil {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
			keys[kid] = pub
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("certificate endpoint returned no usable keys")
	}
	return keys, nil
}

// StaticVerifier resolves identities from a fixed token map. Used in
// development mode and tests where no identity provider is reachable.
type StaticVerifier map[string]Identity

func (s StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	id, ok := s[token]
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown token", ErrUnauthenticated)
	}
	return id, nil
}

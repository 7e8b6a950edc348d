package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"catalog-service/internal/util"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const (
	passwordRealmGrant = "http://auth0.com/oauth/grant-type/password-realm"
	defaultRealm       = "Username-Password-Authentication"
)

var ErrUnauthorized = errors.New("unauthorized")

// ProviderError is a non-success answer from the identity provider.
// Body is the provider's JSON payload, passed through to callers.
type ProviderError struct {
	Status int
	Body   json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.Status, string(e.Body))
}

// TokenResponse is the token grant returned by a login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
	Scope       string `json:"scope,omitempty"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Principal is the verified caller behind a bearer token
type Principal struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// DisplayName picks the best human-readable identifier
func (p *Principal) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	}
	return p.Subject
}

// Verifier checks a bearer token
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// IdentityProvider exchanges credentials and verifies tokens
type IdentityProvider interface {
	Verifier
	Login(ctx context.Context, email, password string) (*TokenResponse, error)
	Register(ctx context.Context, email, password string) error
}

// TokenCache stores verified principals keyed by token
type TokenCache interface {
	GetToken(ctx context.Context, token string) ([]byte, bool, error)
	SetToken(ctx context.Context, token string, payload []byte, ttl time.Duration) error
}

// Config configures the Auth0 client
type Config struct {
	Domain       string
	Audience     string
	ClientID     string
	ClientSecret string
	Realm        string
	// Issuer defaults to https://<Domain>/
	Issuer string
	// Algorithms lists the accepted signing algorithms, RS256 by default
	Algorithms []string
	// BaseURL overrides https://<Domain>
	BaseURL string
	// JWKSURL defaults to <BaseURL>/.well-known/jwks.json
	JWKSURL       string
	TokenCacheTTL time.Duration
}

// Auth0Client talks to the Auth0 authentication and management APIs
type Auth0Client struct {
	cfg     Config
	baseURL string
	client  *http.Client
	cache   TokenCache
	logger  *zap.Logger

	jwksMu     sync.Mutex
	jwks       *keyfunc.JWKS
	jwksCtx    context.Context
	jwksCancel context.CancelFunc
}

// NewAuth0Client creates a new Auth0 client. cache may be nil.
func NewAuth0Client(cfg Config, cache TokenCache) *Auth0Client {
	if cfg.Realm == "" {
		cfg.Realm = defaultRealm
	}
	if cfg.TokenCacheTTL <= 0 {
		cfg.TokenCacheTTL = 5 * time.Minute
	}
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = []string{"RS256"}
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "https://" + cfg.Domain + "/"
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://" + cfg.Domain
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = baseURL + "/.well-known/jwks.json"
	}

	jwksCtx, jwksCancel := context.WithCancel(context.Background())
	return &Auth0Client{
		cfg:        cfg,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		logger:     util.GetLogger(),
		jwksCtx:    jwksCtx,
		jwksCancel: jwksCancel,
	}
}

// Login exchanges email and password for tokens
func (c *Auth0Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	ctx, span := util.StartSpan(ctx, "Auth0Client.Login")
	defer span.End()

	var tokens TokenResponse
	err := c.postJSON(ctx, "/oauth/token", "", map[string]string{
		"grant_type":    passwordRealmGrant,
		"username":      email,
		"password":      password,
		"audience":      c.cfg.Audience,
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"realm":         c.cfg.Realm,
		"scope":         "openid profile email",
	}, http.StatusOK, &tokens)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Register creates a user through the management API
func (c *Auth0Client) Register(ctx context.Context, email, password string) error {
	ctx, span := util.StartSpan(ctx, "Auth0Client.Register")
	defer span.End()

	var mgmt TokenResponse
	err := c.postJSON(ctx, "/oauth/token", "", map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"audience":      c.baseURL + "/api/v2/",
		"grant_type":    "client_credentials",
	}, http.StatusOK, &mgmt)
	if err != nil {
		return err
	}

	err = c.postJSON(ctx, "/api/v2/users", mgmt.AccessToken, map[string]string{
		"email":      email,
		"password":   password,
		"connection": c.cfg.Realm,
	}, http.StatusCreated, nil)
	if err != nil {
		return err
	}

	c.logger.Info("User registered", zap.String("email", email))
	return nil
}

// accessClaims are the claims read from an Auth0 access token
type accessClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verify validates a bearer JWT against the tenant's signing keys, issuer,
// audience and allowed algorithms. Verified principals are cached until the
// token expires or TokenCacheTTL elapses, whichever is sooner.
func (c *Auth0Client) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	if c.cache != nil {
		payload, ok, err := c.cache.GetToken(ctx, token)
		if err != nil {
			c.logger.Warn("Token cache lookup failed, validating token", zap.Error(err))
		} else if ok {
			var p Principal
			if err := json.Unmarshal(payload, &p); err == nil {
				return &p, nil
			}
		}
	}

	ctx, span := util.StartSpan(ctx, "Auth0Client.Verify")
	defer span.End()

	keys, err := c.signingKeys(ctx)
	if err != nil {
		return nil, err
	}

	var claims accessClaims
	parser := jwt.NewParser(jwt.WithValidMethods(c.cfg.Algorithms))
	if _, err := parser.ParseWithClaims(token, &claims, keys.Keyfunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !claims.VerifyIssuer(c.cfg.Issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrUnauthorized, claims.Issuer)
	}
	if c.cfg.Audience != "" && !claims.VerifyAudience(c.cfg.Audience, true) {
		return nil, fmt.Errorf("%w: token not issued for this audience", ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}

	p := &Principal{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}

	if c.cache != nil {
		ttl := c.cfg.TokenCacheTTL
		if claims.ExpiresAt != nil {
			if left := time.Until(claims.ExpiresAt.Time); left < ttl {
				ttl = left
			}
		}
		if ttl > 0 {
			payload, _ := json.Marshal(p)
			if err := c.cache.SetToken(ctx, token, payload, ttl); err != nil {
				c.logger.Warn("Failed to cache token", zap.Error(err))
			}
		}
	}
	return p, nil
}

// signingKeys loads the tenant JWKS on first use. A failed load is retried
// on the next call.
func (c *Auth0Client) signingKeys(ctx context.Context) (*keyfunc.JWKS, error) {
	c.jwksMu.Lock()
	defer c.jwksMu.Unlock()

	if c.jwks != nil {
		return c.jwks, nil
	}

	jwks, err := keyfunc.Get(c.cfg.JWKSURL, keyfunc.Options{
		Ctx:               c.jwksCtx,
		Client:            c.client,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			c.logger.Warn("Failed to refresh JWKS", zap.String("url", c.cfg.JWKSURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load jwks from %s: %w", c.cfg.JWKSURL, err)
	}

	c.logger.Info("JWKS loaded", zap.String("url", c.cfg.JWKSURL))
	c.jwks = jwks
	return jwks, nil
}

// Close stops the background JWKS refresh
func (c *Auth0Client) Close() {
	c.jwksCancel()
}

func (c *Auth0Client) postJSON(ctx context.Context, path, bearer string, payload interface{}, wantStatus int, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return &ProviderError{Status: resp.StatusCode, Body: jsonOrString(respBody)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// jsonOrString keeps valid JSON bodies and quotes anything else
func jsonOrString(body []byte) json.RawMessage {
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

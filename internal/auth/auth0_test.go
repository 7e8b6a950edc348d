package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokenCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryTokenCache) GetToken(ctx context.Context, token string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[token]
	return v, ok, nil
}

func (m *memoryTokenCache) SetToken(ctx context.Context, token string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[token] = payload
	return nil
}

const testKID = "test-key"

var (
	signingKeyOnce sync.Once
	signingKey     *rsa.PrivateKey
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	signingKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		signingKey = key
	})
	return signingKey
}

func jwksBody(key *rsa.PublicKey) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	return body
}

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(testSigningKey(t))
	require.NoError(t, err)
	return signed
}

func userClaims(issuer string) *accessClaims {
	return &accessClaims{
		Email: "ash@example.com",
		Name:  "Ash",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "auth0|1",
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"catalog-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func fakeAuth0(t *testing.T, jwksCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch body["grant_type"] {
		case passwordRealmGrant:
			if body["password"] != "hunter2" {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"Wrong email or password."}`))
				return
			}
			assert.Equal(t, defaultRealm, body["realm"])
			json.NewEncoder(w).Encode(TokenResponse{AccessToken: "user-token", TokenType: "Bearer", ExpiresIn: 86400})
		case "client_credentials":
			json.NewEncoder(w).Encode(TokenResponse{AccessToken: "mgmt-token", TokenType: "Bearer"})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/api/v2/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mgmt-token", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "taken@example.com" {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"The user already exists."}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"user_id":"auth0|1"}`))
	})

	publicKey := &testSigningKey(t).PublicKey
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(jwksCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write(jwksBody(publicKey))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuth0Client_Login(t *testing.T) {
	var calls int32
	srv := fakeAuth0(t, &calls)
	client := NewAuth0Client(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, nil)

	tokens, err := client.Login(context.Background(), "ash@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "user-token", tokens.AccessToken)

	_, err = client.Login(context.Background(), "ash@example.com", "wrong")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusForbidden, perr.Status)
	assert.JSONEq(t, `{"error":"invalid_grant","error_description":"Wrong email or password."}`, string(perr.Body))
}

func TestAuth0Client_Register(t *testing.T) {
	var calls int32
	srv := fakeAuth0(t, &calls)
	client := NewAuth0Client(Config{BaseURL: srv.URL}, nil)

	assert.NoError(t, client.Register(context.Background(), "new@example.com", "pw"))

	err := client.Register(context.Background(), "taken@example.com", "pw")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusConflict, perr.Status)
}

func newVerifyingClient(t *testing.T, srv *httptest.Server, cache TokenCache) *Auth0Client {
	t.Helper()
	client := NewAuth0Client(Config{
		BaseURL:  srv.URL,
		Issuer:   "https://tenant.example/",
		Audience: "catalog-api",
	}, cache)
	t.Cleanup(client.Close)
	return client
}

func TestAuth0Client_VerifyUsesCache(t *testing.T) {
	var calls int32
	srv := fakeAuth0(t, &calls)
	cache := &memoryTokenCache{entries: map[string][]byte{}}
	client := newVerifyingClient(t, srv, cache)

	token := signToken(t, userClaims("https://tenant.example/"))
	for i := 0; i < 3; i++ {
		p, err := client.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "auth0|1", p.Subject)
		assert.Equal(t, "Ash", p.DisplayName())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, cache.entries, token)

	_, err := client.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuth0Client_VerifyRejectsInvalidTokens(t *testing.T) {
	var calls int32
	srv := fakeAuth0(t, &calls)
	client := newVerifyingClient(t, srv, nil)

	wrongIssuer := userClaims("https://evil.example/")

	wrongAudience := userClaims("https://tenant.example/")
	wrongAudience.Audience = jwt.ClaimStrings{"other-api"}

	expired := userClaims("https://tenant.example/")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := userClaims("https://tenant.example/")
	noSubject.Subject = ""

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, userClaims("https://tenant.example/"))
	hmac.Header["kid"] = testKID
	hmacToken, err := hmac.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, userClaims("https://tenant.example/"))
	forged.Header["kid"] = testKID
	forgedToken, err := forged.SignedString(otherKey)
	require.NoError(t, err)

	cases := map[string]string{
		"wrong issuer":      signToken(t, wrongIssuer),
		"wrong audience":    signToken(t, wrongAudience),
		"expired":           signToken(t, expired),
		"missing subject":   signToken(t, noSubject),
		"hs256 not allowed": hmacToken,
		"foreign key":       forgedToken,
		"garbage":           "not.a.jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestAuth0Client_VerifyWithoutKeysIsProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := newVerifyingClient(t, srv, nil)
	_, err := client.Verify(context.Background(), signToken(t, userClaims("https://tenant.example/")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestNewAuth0Client_Defaults(t *testing.T) {
	client := NewAuth0Client(Config{Domain: "tenant.auth0.com"}, nil)
	defer client.Close()

	assert.Equal(t, "https://tenant.auth0.com/", client.cfg.Issuer)
	assert.Equal(t, []string{"RS256"}, client.cfg.Algorithms)
	assert.Equal(t, "https://tenant.auth0.com/.well-known/jwks.json", client.cfg.JWKSURL)
	assert.Equal(t, defaultRealm, client.cfg.Realm)
}

func TestPrincipal_DisplayName(t *testing.T) {
	assert.Equal(t, "Ash", (&Principal{Subject: "s", Email: "e", Name: "Ash"}).DisplayName())
	assert.Equal(t, "e", (&Principal{Subject: "s", Email: "e"}).DisplayName())
	assert.Equal(t, "s", (&Principal{Subject: "s"}).DisplayName())
}

// ABOUTME: Tests for the request authenticator and OpenID key provider
// ABOUTME: Signs RS256 tokens locally to cover channel, emulator, and disabled-auth verdicts

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/credentials"
)

const (
	testAppID      = "app-123"
	testKid        = "key-1"
	testServiceURL = "https://smba.example.net/emea/"
)

// staticKeys implements KeyProvider over a fixed map.
type staticKeys map[string]any

func (s staticKeys) Key(_ context.Context, kid string) (any, error) {
	k, ok := s[kid]
	if !ok {
		return nil, errors.New("unknown kid")
	}
	return k, nil
}

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func channelClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":        credentials.ChannelTokenIssuer,
		"aud":        testAppID,
		"serviceurl": testServiceURL,
		"iat":        now.Unix(),
		"exp":        now.Add(time.Hour).Unix(),
	}
}

func testActivity() *activity.Activity {
	return &activity.Activity{
		Type:       activity.TypeMessage,
		ChannelID:  activity.ChannelMSTeams,
		ServiceURL: testServiceURL,
	}
}

func newAuthenticator(t *testing.T, appID string, key *rsa.PrivateKey) *JWTAuthenticator {
	t.Helper()
	t.Setenv(credentials.EnvChannelService, "")
	keys := staticKeys{testKid: &key.PublicKey}
	creds := credentials.NewResolver(credentials.Settings{AppID: appID, AppPassword: "pw"})
	return NewJWTAuthenticatorWithKeys(creds, keys, keys, nil)
}

func TestAuthenticate_ValidChannelToken(t *testing.T) {
	key := newSigningKey(t)
	a := newAuthenticator(t, testAppID, key)

	id, err := a.Authenticate(context.Background(), "Bearer "+sign(t, key, channelClaims()), testActivity())
	require.NoError(t, err)
	assert.True(t, id.Authenticated)
	assert.False(t, id.Anonymous)
	assert.Equal(t, testAppID, id.AppID)
	assert.Equal(t, credentials.ChannelTokenIssuer, id.Issuer)
	assert.Equal(t, testServiceURL, id.Claim("serviceurl"))
}

func TestAuthenticate_ChannelTokenRejections(t *testing.T) {
	key := newSigningKey(t)
	otherKey := newSigningKey(t)

	tests := []struct {
		name   string
		header func() string
	}{
		{"wrong audience", func() string {
			c := channelClaims()
			c["aud"] = "someone-else"
			return "Bearer " + sign(t, key, c)
		}},
		{"wrong issuer", func() string {
			c := channelClaims()
			c["iss"] = "https://evil.example"
			return "Bearer " + sign(t, key, c)
		}},
		{"service url mismatch", func() string {
			c := channelClaims()
			c["serviceurl"] = "https://other.example/"
			return "Bearer " + sign(t, key, c)
		}},
		{"missing service url", func() string {
			c := channelClaims()
			delete(c, "serviceurl")
			return "Bearer " + sign(t, key, c)
		}},
		{"expired", func() string {
			c := channelClaims()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return "Bearer " + sign(t, key, c)
		}},
		{"wrong signing key", func() string {
			return "Bearer " + sign(t, otherKey, channelClaims())
		}},
		{"basic scheme", func() string { return "Basic dXNlcjpwdw==" }},
		{"empty bearer", func() string { return "Bearer " }},
		{"garbage", func() string { return "Bearer not-a-jwt" }},
	}

	a := newAuthenticator(t, testAppID, key)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), tt.header(), testActivity())
			require.Error(t, err)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, ErrAuthentication)

			var authErr *AuthenticationError
			assert.True(t, errors.As(err, &authErr))
		})
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	key := newSigningKey(t)

	t.Run("credentials configured", func(t *testing.T) {
		a := newAuthenticator(t, testAppID, key)
		_, err := a.Authenticate(context.Background(), "  ", testActivity())
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("authentication disabled", func(t *testing.T) {
		a := newAuthenticator(t, "", key)
		id, err := a.Authenticate(context.Background(), "", testActivity())
		require.NoError(t, err)
		assert.True(t, id.Anonymous)
		assert.True(t, id.Authenticated)
	})
}

func TestAuthenticate_DisabledAuthEmulatorWithHeader(t *testing.T) {
	key := newSigningKey(t)
	a := newAuthenticator(t, "", key)

	act := testActivity()
	act.ChannelID = activity.ChannelEmulator
	id, err := a.Authenticate(context.Background(), "Bearer whatever", act)
	require.NoError(t, err)
	assert.True(t, id.Anonymous)
}

func TestAuthenticate_DisabledAuthRejectsChannelToken(t *testing.T) {
	key := newSigningKey(t)
	a := newAuthenticator(t, "", key)

	_, err := a.Authenticate(context.Background(), "Bearer "+sign(t, key, channelClaims()), testActivity())
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestAuthenticate_EmulatorTokens(t *testing.T) {
	key := newSigningKey(t)
	a := newAuthenticator(t, testAppID, key)
	act := testActivity()
	act.ChannelID = activity.ChannelEmulator

	now := time.Now()
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}

	v1 := base()
	v1["iss"] = emulatorIssuers[0]
	v1["ver"] = "1.0"
	v1["appid"] = testAppID
	id, err := a.Authenticate(context.Background(), "Bearer "+sign(t, key, v1), act)
	require.NoError(t, err)
	assert.Equal(t, testAppID, id.AppID)

	v2 := base()
	v2["iss"] = emulatorIssuers[1]
	v2["ver"] = "2.0"
	v2["azp"] = testAppID
	_, err = a.Authenticate(context.Background(), "Bearer "+sign(t, key, v2), act)
	require.NoError(t, err)

	wrongApp := base()
	wrongApp["iss"] = emulatorIssuers[0]
	wrongApp["appid"] = "not-me"
	_, err = a.Authenticate(context.Background(), "Bearer "+sign(t, key, wrongApp), act)
	assert.ErrorIs(t, err, ErrAuthentication)

	noApp := base()
	noApp["iss"] = emulatorIssuers[0]
	_, err = a.Authenticate(context.Background(), "Bearer "+sign(t, key, noApp), act)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestAuthenticate_GovernmentIssuer(t *testing.T) {
	key := newSigningKey(t)
	t.Setenv(credentials.EnvChannelService, credentials.GovernmentChannelService)
	keys := staticKeys{testKid: &key.PublicKey}
	creds := credentials.NewResolver(credentials.Settings{AppID: testAppID})
	a := NewJWTAuthenticatorWithKeys(creds, keys, keys, nil)

	public := channelClaims()
	_, err := a.Authenticate(context.Background(), "Bearer "+sign(t, key, public), testActivity())
	assert.ErrorIs(t, err, ErrAuthentication, "public issuer is rejected in the government cloud")

	gov := channelClaims()
	gov["iss"] = credentials.GovChannelTokenIssuer
	_, err = a.Authenticate(context.Background(), "Bearer "+sign(t, key, gov), testActivity())
	assert.NoError(t, err)
}

// keyServer serves OpenID metadata and a one-key JWKS, counting key fetches.
type keyServer struct {
	*httptest.Server
	jwksHits atomic.Int32
}

func newKeyServer(t *testing.T, key *rsa.PrivateKey) *keyServer {
	t.Helper()
	ks := &keyServer{}
	mux := http.NewServeMux()
	ks.Server = httptest.NewServer(mux)
	t.Cleanup(ks.Close)

	mux.HandleFunc("/openid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"jwks_uri": ks.URL + "/keys"})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		ks.jwksHits.Add(1)
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     testKid,
			Algorithm: "RS256",
			Use:       "sig",
		}}}
		_ = json.NewEncoder(w).Encode(set)
	})
	return ks
}

func TestOpenIDKeyProvider_FetchesAndCaches(t *testing.T) {
	key := newSigningKey(t)
	ks := newKeyServer(t, key)

	now := time.Now()
	p := NewOpenIDKeyProvider(ks.URL+"/openid", ks.Client())
	p.now = func() time.Time { return now }

	got, err := p.Key(context.Background(), testKid)
	require.NoError(t, err)
	pub, ok := got.(*rsa.PublicKey)
	require.True(t, ok)
	assert.Equal(t, key.PublicKey.N, pub.N)

	_, err = p.Key(context.Background(), testKid)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ks.jwksHits.Load(), "cached key is reused")

	_, err = p.Key(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, int32(1), ks.jwksHits.Load(), "unknown kid right after a fetch does not refetch")

	now = now.Add(minKeyRefreshInterval + time.Second)
	_, err = p.Key(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, int32(2), ks.jwksHits.Load(), "unknown kid refreshes once the minimum interval passed")

	now = now.Add(keyRefreshInterval)
	_, err = p.Key(context.Background(), testKid)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ks.jwksHits.Load(), "stale keys are refetched")
}

func TestOpenIDKeyProvider_UnknownKidsAreBounded(t *testing.T) {
	ks := newKeyServer(t, newSigningKey(t))
	p := NewOpenIDKeyProvider(ks.URL+"/openid", ks.Client())

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			_, err := p.Key(context.Background(), fmt.Sprintf("forged-%d", i))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), ks.jwksHits.Load(), "forged kids share a single fetch")
}

func TestOpenIDKeyProvider_MetadataFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenIDKeyProvider(srv.URL, srv.Client())
	_, err := p.Key(context.Background(), testKid)
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	id := &Identity{Authenticated: true, AppID: "x"}
	assert.Same(t, id, FromContext(WithIdentity(ctx, id)))
}

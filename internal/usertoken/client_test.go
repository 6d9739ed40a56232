// ABOUTME: Tests for the token-service REST client
// ABOUTME: Checks query construction, 404 handling, and RPCError surfacing against httptest

package usertoken

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

func newTokenService(t *testing.T, status int, response string) (*HTTPClient, *[]seenRequest) {
	t.Helper()
	var seen []seenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seen = append(seen, seenRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: string(data)})
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", srv.Client(), nil), &seen
}

func TestGetUserToken(t *testing.T) {
	c, seen := newTokenService(t, http.StatusOK, `{"connectionName":"github","token":"tok-1","expiration":"2026-01-01T00:00:00Z"}`)

	tok, err := c.GetUserToken(context.Background(), "user-1", "github", "msteams", "123456")
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "tok-1", tok.Token)

	got := (*seen)[0]
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/usertoken/GetToken", got.Path)
	assert.Equal(t, "user-1", got.Query.Get("userId"))
	assert.Equal(t, "github", got.Query.Get("connectionName"))
	assert.Equal(t, "msteams", got.Query.Get("channelId"))
	assert.Equal(t, "123456", got.Query.Get("code"))
}

func TestGetUserToken_NotFoundIsNoToken(t *testing.T) {
	c, _ := newTokenService(t, http.StatusNotFound, `{"error":"not found"}`)

	tok, err := c.GetUserToken(context.Background(), "user-1", "github", "msteams", "")
	assert.NoError(t, err)
	assert.Nil(t, tok)
}

func TestGetUserToken_ServerError(t *testing.T) {
	c, _ := newTokenService(t, http.StatusInternalServerError, "boom")

	tok, err := c.GetUserToken(context.Background(), "user-1", "github", "msteams", "")
	assert.Nil(t, tok)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, http.StatusInternalServerError, rpcErr.StatusCode)
	assert.Equal(t, "boom", rpcErr.Body)
}

func TestSignOut(t *testing.T) {
	c, seen := newTokenService(t, http.StatusOK, "")

	require.NoError(t, c.SignOut(context.Background(), "user-1", "", "msteams"))
	got := (*seen)[0]
	assert.Equal(t, http.MethodDelete, got.Method)
	assert.Equal(t, "/api/usertoken/SignOut", got.Path)
	assert.False(t, got.Query.Has("connectionName"))
}

func TestGetSignInURL(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		c, seen := newTokenService(t, http.StatusOK, "https://signin.example/abc\n")
		link, err := c.GetSignInURL(context.Background(), "state-blob", "https://done.example")
		require.NoError(t, err)
		assert.Equal(t, "https://signin.example/abc", link)
		assert.Equal(t, "/api/botsignin/GetSignInUrl", (*seen)[0].Path)
		assert.Equal(t, "state-blob", (*seen)[0].Query.Get("state"))
		assert.Equal(t, "https://done.example", (*seen)[0].Query.Get("finalRedirect"))
	})

	t.Run("json string", func(t *testing.T) {
		c, _ := newTokenService(t, http.StatusOK, `"https://signin.example/xyz"`)
		link, err := c.GetSignInURL(context.Background(), "s", "")
		require.NoError(t, err)
		assert.Equal(t, "https://signin.example/xyz", link)
	})
}

func TestGetSignInResource(t *testing.T) {
	c, _ := newTokenService(t, http.StatusOK, `{"signInLink":"https://signin.example/r","tokenExchangeResource":{"id":"x","uri":"api://bot"}}`)

	res, err := c.GetSignInResource(context.Background(), "s", "")
	require.NoError(t, err)
	assert.Equal(t, "https://signin.example/r", res.SignInLink)
	require.NotNil(t, res.TokenExchangeResource)
	assert.Equal(t, "api://bot", res.TokenExchangeResource.URI)
}

func TestGetTokenStatus(t *testing.T) {
	c, seen := newTokenService(t, http.StatusOK, `[{"connectionName":"github","hasToken":true},{"connectionName":"graph","hasToken":false}]`)

	statuses, err := c.GetTokenStatus(context.Background(), "user-1", "msteams", "github,graph")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].HasToken)
	assert.Equal(t, "github,graph", (*seen)[0].Query.Get("include"))
}

func TestGetAadTokens(t *testing.T) {
	c, seen := newTokenService(t, http.StatusOK, `{"https://graph.microsoft.com":{"connectionName":"aad","token":"g-tok"}}`)

	tokens, err := c.GetAadTokens(context.Background(), "user-1", "aad", "msteams", []string{"https://graph.microsoft.com"})
	require.NoError(t, err)
	assert.Equal(t, "g-tok", tokens["https://graph.microsoft.com"].Token)

	got := (*seen)[0]
	assert.Equal(t, http.MethodPost, got.Method)
	var body map[string][]string
	require.NoError(t, json.Unmarshal([]byte(got.Body), &body))
	assert.Equal(t, []string{"https://graph.microsoft.com"}, body["resourceUrls"])
}

func TestEmulateOAuthCards(t *testing.T) {
	c, seen := newTokenService(t, http.StatusOK, "")

	require.NoError(t, c.EmulateOAuthCards(context.Background(), true))
	assert.Equal(t, "/api/usertoken/emulateOAuthCards", (*seen)[0].Path)
	assert.Equal(t, "true", (*seen)[0].Query.Get("emulate"))
}

func TestFactory_CachesPerBaseURL(t *testing.T) {
	created := 0
	f := NewFactoryFunc(func(baseURL string) Client {
		created++
		return NewHTTPClient(baseURL, nil, nil)
	})

	a := f.Client("https://token.example/")
	b := f.Client("https://token.example")
	assert.Same(t, a, b)
	assert.Equal(t, 1, created)
}

// ABOUTME: REST client for the token-exchange service
// ABOUTME: Retrieves, lists and revokes user tokens and builds sign-in links

package usertoken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client is the set of token-service operations the adapter relies on.
type Client interface {
	GetUserToken(ctx context.Context, userID, connectionName, channelID, magicCode string) (*TokenResponse, error)
	SignOut(ctx context.Context, userID, connectionName, channelID string) error
	GetSignInURL(ctx context.Context, state, finalRedirect string) (string, error)
	GetSignInResource(ctx context.Context, state, finalRedirect string) (*SignInResource, error)
	GetTokenStatus(ctx context.Context, userID, channelID, include string) ([]TokenStatus, error)
	GetAadTokens(ctx context.Context, userID, connectionName, channelID string, resourceURLs []string) (map[string]TokenResponse, error)
	EmulateOAuthCards(ctx context.Context, emulate bool) error
}

// RPCError is a non-2xx answer from the token service.
type RPCError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RPCError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("token service %s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("token service %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// HTTPClient talks to one token-service endpoint over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client rooted at baseURL.
func NewHTTPClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger.With("component", "usertoken", "base_url", baseURL),
	}
}

// BaseURL returns the endpoint without a trailing slash.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// GetUserToken implements Client. A 404 means no token is stored.
func (c *HTTPClient) GetUserToken(ctx context.Context, userID, connectionName, channelID, magicCode string) (*TokenResponse, error) {
	q := url.Values{
		"userId":         {userID},
		"connectionName": {connectionName},
	}
	if channelID != "" {
		q.Set("channelId", channelID)
	}
	if magicCode != "" {
		q.Set("code", magicCode)
	}

	var out TokenResponse
	status, err := c.do(ctx, "GetToken", http.MethodGet, "/api/usertoken/GetToken", q, nil, &out, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || out.Token == "" {
		return nil, nil
	}
	return &out, nil
}

// SignOut implements Client. An empty connectionName signs out of every connection.
func (c *HTTPClient) SignOut(ctx context.Context, userID, connectionName, channelID string) error {
	q := url.Values{"userId": {userID}}
	if connectionName != "" {
		q.Set("connectionName", connectionName)
	}
	if channelID != "" {
		q.Set("channelId", channelID)
	}
	_, err := c.do(ctx, "SignOut", http.MethodDelete, "/api/usertoken/SignOut", q, nil, nil)
	return err
}

// GetSignInURL implements Client. The service answers with the bare URL.
func (c *HTTPClient) GetSignInURL(ctx context.Context, state, finalRedirect string) (string, error) {
	q := url.Values{"state": {state}}
	if finalRedirect != "" {
		q.Set("finalRedirect", finalRedirect)
	}
	var raw rawBody
	if _, err := c.do(ctx, "GetSignInUrl", http.MethodGet, "/api/botsignin/GetSignInUrl", q, nil, &raw); err != nil {
		return "", err
	}
	link := strings.TrimSpace(string(raw))
	// Some deployments JSON-encode the string.
	if unquoted, err := strconv.Unquote(link); err == nil {
		link = unquoted
	}
	return link, nil
}

// GetSignInResource implements Client.
func (c *HTTPClient) GetSignInResource(ctx context.Context, state, finalRedirect string) (*SignInResource, error) {
	q := url.Values{"state": {state}}
	if finalRedirect != "" {
		q.Set("finalRedirect", finalRedirect)
	}
	var out SignInResource
	if _, err := c.do(ctx, "GetSignInResource", http.MethodGet, "/api/botsignin/GetSignInResource", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTokenStatus implements Client.
func (c *HTTPClient) GetTokenStatus(ctx context.Context, userID, channelID, include string) ([]TokenStatus, error) {
	q := url.Values{"userId": {userID}}
	if channelID != "" {
		q.Set("channelId", channelID)
	}
	if include != "" {
		q.Set("include", include)
	}
	var out []TokenStatus
	if _, err := c.do(ctx, "GetTokenStatus", http.MethodGet, "/api/usertoken/GetTokenStatus", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAadTokens implements Client.
func (c *HTTPClient) GetAadTokens(ctx context.Context, userID, connectionName, channelID string, resourceURLs []string) (map[string]TokenResponse, error) {
	q := url.Values{
		"userId":         {userID},
		"connectionName": {connectionName},
	}
	if channelID != "" {
		q.Set("channelId", channelID)
	}
	if resourceURLs == nil {
		resourceURLs = []string{}
	}
	out := make(map[string]TokenResponse)
	if _, err := c.do(ctx, "GetAadTokens", http.MethodPost, "/api/usertoken/GetAadTokens", q, aadResourceURLs{ResourceURLs: resourceURLs}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EmulateOAuthCards implements Client.
func (c *HTTPClient) EmulateOAuthCards(ctx context.Context, emulate bool) error {
	q := url.Values{"emulate": {strconv.FormatBool(emulate)}}
	_, err := c.do(ctx, "EmulateOAuthCards", http.MethodPost, "/api/usertoken/emulateOAuthCards", q, nil, nil)
	return err
}

// rawBody receives an undecoded response body.
type rawBody []byte

// do performs one request and returns the response status. Statuses listed in
// tolerated are returned without error and without decoding the body.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, in, out any, tolerated ...int) (int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	for _, s := range tolerated {
		if resp.StatusCode == s {
			return resp.StatusCode, nil
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		if readErr != nil {
			excerpt = []byte("(failed to read response body)")
		}
		c.logger.Debug("token service call failed", "operation", op, "status", resp.StatusCode)
		return resp.StatusCode, &RPCError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s response: %w", op, err)
	}
	if raw, ok := out.(*rawBody); ok {
		*raw = data
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", op, err)
	}
	return resp.StatusCode, nil
}

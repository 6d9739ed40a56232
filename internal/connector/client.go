// ABOUTME: REST v3 client for a single channel gateway service URL
// ABOUTME: Sends, replies to, updates and deletes activities and manages conversations

package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389/coven-adapter/internal/activity"
)

// UserAgent is sent on every gateway request.
const UserAgent = "coven-adapter/1.0"

// Client is the set of gateway operations the adapter relies on.
type Client interface {
	CreateConversation(ctx context.Context, params *ConversationParameters) (*ConversationResourceResponse, error)
	SendToConversation(ctx context.Context, conversationID string, a *activity.Activity) (*activity.ResourceResponse, error)
	ReplyToActivity(ctx context.Context, conversationID, activityID string, a *activity.Activity) (*activity.ResourceResponse, error)
	UpdateActivity(ctx context.Context, conversationID, activityID string, a *activity.Activity) (*activity.ResourceResponse, error)
	DeleteActivity(ctx context.Context, conversationID, activityID string) error
	GetConversationMembers(ctx context.Context, conversationID string) ([]activity.ChannelAccount, error)
	GetActivityMembers(ctx context.Context, conversationID, activityID string) ([]activity.ChannelAccount, error)
	DeleteConversationMember(ctx context.Context, conversationID, memberID string) error
	GetConversations(ctx context.Context, continuationToken string) (*ConversationsResult, error)
}

// RPCError is a non-2xx answer from the gateway.
type RPCError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RPCError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway %s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("gateway %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// HTTPClient talks to one gateway over HTTP. Authentication is the job of the
// supplied *http.Client.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client rooted at serviceURL.
func NewHTTPClient(serviceURL string, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(serviceURL, "/"),
		http:    httpClient,
		logger:  logger.With("component", "connector", "service_url", serviceURL),
	}
}

// BaseURL returns the service URL without a trailing slash.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// CreateConversation implements Client.
func (c *HTTPClient) CreateConversation(ctx context.Context, params *ConversationParameters) (*ConversationResourceResponse, error) {
	var out ConversationResourceResponse
	if err := c.do(ctx, "CreateConversation", http.MethodPost, "/v3/conversations", nil, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendToConversation implements Client.
func (c *HTTPClient) SendToConversation(ctx context.Context, conversationID string, a *activity.Activity) (*activity.ResourceResponse, error) {
	var out activity.ResourceResponse
	path := "/v3/conversations/" + url.PathEscape(conversationID) + "/activities"
	if err := c.do(ctx, "SendToConversation", http.MethodPost, path, nil, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplyToActivity implements Client.
func (c *HTTPClient) ReplyToActivity(ctx context.Context, conversationID, activityID string, a *activity.Activity) (*activity.ResourceResponse, error) {
	var out activity.ResourceResponse
	if err := c.do(ctx, "ReplyToActivity", http.MethodPost, activityPath(conversationID, activityID), nil, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateActivity implements Client.
func (c *HTTPClient) UpdateActivity(ctx context.Context, conversationID, activityID string, a *activity.Activity) (*activity.ResourceResponse, error) {
	var out activity.ResourceResponse
	if err := c.do(ctx, "UpdateActivity", http.MethodPut, activityPath(conversationID, activityID), nil, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteActivity implements Client.
func (c *HTTPClient) DeleteActivity(ctx context.Context, conversationID, activityID string) error {
	return c.do(ctx, "DeleteActivity", http.MethodDelete, activityPath(conversationID, activityID), nil, nil, nil)
}

// GetConversationMembers implements Client.
func (c *HTTPClient) GetConversationMembers(ctx context.Context, conversationID string) ([]activity.ChannelAccount, error) {
	var out []activity.ChannelAccount
	path := "/v3/conversations/" + url.PathEscape(conversationID) + "/members"
	if err := c.do(ctx, "GetConversationMembers", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetActivityMembers implements Client.
func (c *HTTPClient) GetActivityMembers(ctx context.Context, conversationID, activityID string) ([]activity.ChannelAccount, error) {
	var out []activity.ChannelAccount
	path := activityPath(conversationID, activityID) + "/members"
	if err := c.do(ctx, "GetActivityMembers", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteConversationMember implements Client.
func (c *HTTPClient) DeleteConversationMember(ctx context.Context, conversationID, memberID string) error {
	path := "/v3/conversations/" + url.PathEscape(conversationID) + "/members/" + url.PathEscape(memberID)
	return c.do(ctx, "DeleteConversationMember", http.MethodDelete, path, nil, nil, nil)
}

// GetConversations implements Client.
func (c *HTTPClient) GetConversations(ctx context.Context, continuationToken string) (*ConversationsResult, error) {
	var query url.Values
	if continuationToken != "" {
		query = url.Values{"continuationToken": {continuationToken}}
	}
	var out ConversationsResult
	if err := c.do(ctx, "GetConversations", http.MethodGet, "/v3/conversations", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func activityPath(conversationID, activityID string) string {
	return "/v3/conversations/" + url.PathEscape(conversationID) + "/activities/" + url.PathEscape(activityID)
}

// do performs one request. in is JSON-encoded when non-nil; out is decoded
// when non-nil and the response has a body.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		if readErr != nil {
			excerpt = []byte("(failed to read response body)")
		}
		c.logger.Debug("gateway call failed", "operation", op, "status", resp.StatusCode)
		return &RPCError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

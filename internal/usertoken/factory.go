// ABOUTME: Caches one token-service client per endpoint URL
// ABOUTME: The emulator and the cloud token service get separate clients

package usertoken

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Factory caches a Client per base URL.
type Factory struct {
	mu      sync.Mutex
	clients map[string]Client
	create  func(baseURL string) Client
}

// NewFactory creates a factory producing HTTPClients that share httpClient.
func NewFactory(httpClient *http.Client, logger *slog.Logger) *Factory {
	return NewFactoryFunc(func(baseURL string) Client {
		return NewHTTPClient(baseURL, httpClient, logger)
	})
}

// NewFactoryFunc creates a factory that builds clients with create.
func NewFactoryFunc(create func(baseURL string) Client) *Factory {
	return &Factory{
		clients: make(map[string]Client),
		create:  create,
	}
}

// Client returns the cached client for baseURL, creating it on first use.
func (f *Factory) Client(baseURL string) Client {
	key := strings.TrimRight(baseURL, "/")

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c
	}
	c := f.create(baseURL)
	f.clients[key] = c
	return c
}

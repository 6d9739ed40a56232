// ABOUTME: Hands out one gateway client per distinct service URL
// ABOUTME: Clients are created lazily and cached for the life of the adapter

package connector

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Factory caches a Client per service URL.
type Factory struct {
	mu      sync.Mutex
	clients map[string]Client
	create  func(serviceURL string) Client
}

// NewFactory creates a factory producing HTTPClients that share httpClient.
func NewFactory(httpClient *http.Client, logger *slog.Logger) *Factory {
	return NewFactoryFunc(func(serviceURL string) Client {
		return NewHTTPClient(serviceURL, httpClient, logger)
	})
}

// NewFactoryFunc creates a factory that builds clients with create.
func NewFactoryFunc(create func(serviceURL string) Client) *Factory {
	return &Factory{
		clients: make(map[string]Client),
		create:  create,
	}
}

// Client returns the cached client for serviceURL, creating it on first use.
// URLs differing only in a trailing slash share a client.
func (f *Factory) Client(serviceURL string) Client {
	key := strings.TrimRight(serviceURL, "/")

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c
	}
	c := f.create(serviceURL)
	f.clients[key] = c
	return c
}

// Len returns the number of cached clients.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

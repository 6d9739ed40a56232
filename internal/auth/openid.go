// ABOUTME: OpenID metadata key provider for verifying channel and emulator tokens
// ABOUTME: Fetches the JWKS advertised by a metadata document and caches keys by kid

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"golang.org/x/sync/singleflight"
)

// keyRefreshInterval bounds how long fetched signing keys are trusted.
const keyRefreshInterval = 24 * time.Hour

// minKeyRefreshInterval is the least time between refreshes triggered by an
// unknown kid.
const minKeyRefreshInterval = 5 * time.Minute

// maxMetadataBytes bounds metadata and JWKS responses.
const maxMetadataBytes = 1 << 20

// OpenIDKeyProvider resolves signing keys from an OpenID metadata endpoint.
type OpenIDKeyProvider struct {
	metadataURL string
	client      *http.Client

	mu        sync.RWMutex
	keys      map[string]any
	fetchedAt time.Time

	refreshes singleflight.Group
	now       func() time.Time
}

// NewOpenIDKeyProvider creates a provider for metadataURL. A nil client uses
// a client with a 30 second timeout.
func NewOpenIDKeyProvider(metadataURL string, client *http.Client) *OpenIDKeyProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OpenIDKeyProvider{
		metadataURL: metadataURL,
		client:      client,
		keys:        make(map[string]any),
		now:         time.Now,
	}
}

// Key returns the verification key for kid, refreshing the key set when the
// cache is stale or the kid is unknown. Unknown kids refresh at most once per
// minKeyRefreshInterval and concurrent refreshes share one fetch.
func (p *OpenIDKeyProvider) Key(ctx context.Context, kid string) (any, error) {
	p.mu.RLock()
	key, ok := p.keys[kid]
	age := p.now().Sub(p.fetchedAt)
	fetched := !p.fetchedAt.IsZero()
	p.mu.RUnlock()

	fresh := fetched && age < keyRefreshInterval
	if ok && fresh {
		return key, nil
	}
	if !ok && fetched && age < minKeyRefreshInterval {
		return nil, fmt.Errorf("%w: unknown signing key %q", ErrInvalidToken, kid)
	}

	_, err, _ := p.refreshes.Do("refresh", func() (any, error) {
		// A caller that queued behind a finished refresh reuses its result.
		p.mu.RLock()
		recent := !p.fetchedAt.IsZero() && p.now().Sub(p.fetchedAt) < minKeyRefreshInterval
		p.mu.RUnlock()
		if recent {
			return nil, nil
		}
		return nil, p.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	key, ok = p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown signing key %q", ErrInvalidToken, kid)
	}
	return key, nil
}

// refresh fetches the metadata document and the key set it points at.
func (p *OpenIDKeyProvider) refresh(ctx context.Context) error {
	var metadata struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := p.getJSON(ctx, p.metadataURL, &metadata); err != nil {
		return fmt.Errorf("fetching openid metadata: %w", err)
	}
	if metadata.JWKSURI == "" {
		return fmt.Errorf("openid metadata at %s has no jwks_uri", p.metadataURL)
	}

	var set jose.JSONWebKeySet
	if err := p.getJSON(ctx, metadata.JWKSURI, &set); err != nil {
		return fmt.Errorf("fetching signing keys: %w", err)
	}

	keys := make(map[string]any, len(set.Keys))
	for _, k := range set.Keys {
		if k.KeyID == "" || !k.Valid() {
			continue
		}
		keys[k.KeyID] = k.Key
	}

	p.mu.Lock()
	p.keys = keys
	p.fetchedAt = p.now()
	p.mu.Unlock()
	return nil
}

func (p *OpenIDKeyProvider) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		if err != nil {
			body = []byte("(failed to read response body)")
		}
		return fmt.Errorf("GET %s: %d: %s", url, resp.StatusCode, string(body))
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(out)
}

// ABOUTME: In-memory registry of conversation references captured from inbound turns
// ABOUTME: Feeds proactive notifications; entries live for the life of the process

package references

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/coven-adapter/internal/activity"
)

// Entry is a stored reference and when it was last refreshed.
type Entry struct {
	Key       string
	Reference *activity.ConversationReference
	UpdatedAt time.Time
}

// Registry maps channel/conversation keys to the latest reference seen.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  *slog.Logger
}

// New creates an empty registry. Pass nil logger for default.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger.With("component", "references"),
	}
}

// Key identifies a conversation across channels.
func Key(ref *activity.ConversationReference) string {
	if ref == nil || ref.Conversation == nil || ref.Conversation.ID == "" {
		return ""
	}
	return ref.ChannelID + "/" + ref.Conversation.ID
}

// Put stores ref, replacing any previous reference for the same
// conversation. It reports whether the conversation was new. References
// without a conversation id are ignored.
func (r *Registry) Put(ref *activity.ConversationReference) bool {
	key := Key(ref)
	if key == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.entries[key]
	r.entries[key] = &Entry{Key: key, Reference: ref, UpdatedAt: time.Now()}
	if !existed {
		r.logger.Debug("reference added", "key", key, "service_url", ref.ServiceURL)
	}
	return !existed
}

// Get returns the reference stored under key.
func (r *Registry) Get(key string) (*activity.ConversationReference, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.Reference, true
}

// Delete removes key.
func (r *Registry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// List returns all entries ordered by key.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of stored references.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

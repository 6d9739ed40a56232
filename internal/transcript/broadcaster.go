// ABOUTME: In-memory fan-out of conversation transcripts to live subscribers
// ABOUTME: Publishes inbound and outbound activities to everyone watching a conversation key

package transcript

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-adapter/internal/activity"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// AllConversations subscribes to every conversation.
	AllConversations = "*"
)

// Direction says which way an activity travelled.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Entry is one activity as seen by the adapter.
type Entry struct {
	ID              string             `json:"id"`
	ConversationKey string             `json:"conversationKey"`
	Direction       Direction          `json:"direction"`
	Timestamp       time.Time          `json:"timestamp"`
	Activity        *activity.Activity `json:"activity"`
}

// Broadcaster provides in-memory pub/sub for transcript entries. Subscribers
// register for a conversation key and receive entries as turns run. Nothing
// is retained for late subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Entry // conversationKey -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *Entry),
		logger:      logger.With("component", "transcript"),
	}
}

// Subscribe registers a subscriber for entries on the given conversation key,
// or on every conversation with AllConversations. The subscription is removed
// and its channel closed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationKey string) (<-chan *Entry, string) {
	subID := uuid.New().String()
	ch := make(chan *Entry, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationKey]; !ok {
		b.subscribers[conversationKey] = make(map[string]chan *Entry)
	}
	b.subscribers[conversationKey][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_key", conversationKey,
		"sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationKey, subID)
	}()

	return ch, subID
}

// Publish delivers an entry to subscribers of its conversation key and to
// wildcard subscribers. Entries are dropped for subscribers whose buffers
// are full; publishing never blocks a turn.
func (b *Broadcaster) Publish(entry *Entry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	// Sends happen under the read lock so Unsubscribe cannot close a channel
	// mid-send; every send is non-blocking.
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.deliverLocked(entry.ConversationKey, entry)
	if entry.ConversationKey != AllConversations {
		b.deliverLocked(AllConversations, entry)
	}
}

func (b *Broadcaster) deliverLocked(key string, entry *Entry) {
	for _, ch := range b.subscribers[key] {
		select {
		case ch <- entry:
		default:
			b.logger.Debug("dropped entry for slow subscriber",
				"conversation_key", key,
				"entry_id", entry.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(conversationKey, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationKey]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, conversationKey)
	}

	b.logger.Debug("subscriber removed",
		"conversation_key", conversationKey,
		"sub_id", subID)
}

// Subscribers returns the number of live subscriptions for a key.
func (b *Broadcaster) Subscribers(conversationKey string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationKey])
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convKey, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convKey)
	}

	b.logger.Debug("broadcaster closed")
}

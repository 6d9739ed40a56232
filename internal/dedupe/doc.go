// Package dedupe remembers recently seen activity keys so that gateway
// redeliveries are handled once. Entries expire after a TTL and the oldest
// entry is evicted when the cache is full.
package dedupe

// Package transcript fans out the activities a bot receives and sends to
// live watchers, keyed the same way as the references registry
// ("channelId/conversationId").
//
// Delivery is best effort: slow subscribers lose entries instead of
// stalling turns, and nothing is persisted.
package transcript

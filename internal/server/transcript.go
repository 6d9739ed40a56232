// ABOUTME: Server-Sent Events endpoint streaming live conversation transcripts
// ABOUTME: Subscribes to the transcript broadcaster for one conversation key or all of them

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/coven-adapter/internal/transcript"
)

// transcriptKeepAlive is how often an idle stream sends a comment line.
const transcriptKeepAlive = 30 * time.Second

// handleTranscript streams transcript entries as SSE. The optional
// "conversation" query parameter is a references key; without it every
// conversation is streamed.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	key := r.URL.Query().Get("conversation")
	if key == "" {
		key = transcript.AllConversations
	}

	ctx := r.Context()
	entries, subID := s.opts.Transcripts.Subscribe(ctx, key)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.writeSSEEvent(w, "started", map[string]string{"conversation": key, "subscription": subID})
	flusher.Flush()

	ticker := time.NewTicker(transcriptKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case entry, ok := <-entries:
			if !ok {
				// Broadcaster closed.
				s.writeSSEEvent(w, "done", map[string]string{"conversation": key})
				flusher.Flush()
				return
			}
			s.writeSSEEvent(w, "activity", entry)
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

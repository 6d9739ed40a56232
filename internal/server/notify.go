// ABOUTME: Proactive notify endpoint that messages every known conversation
// ABOUTME: Resumes each stored conversation reference through the adapter

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2389/coven-adapter/internal/references"
)

// DefaultNotifyText is sent when the request names no text.
const DefaultNotifyText = "proactive hello"

// NotifyRequest is the optional POST body of /api/notify.
type NotifyRequest struct {
	Text string `json:"text"`
	// Conversation limits the notification to one registry key.
	Conversation string `json:"conversation"`
}

// NotifyResult reports how many conversations were reached.
type NotifyResult struct {
	Notified int      `json:"notified"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	req, err := parseNotifyRequest(r)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := s.opts.References.List()
	if req.Conversation != "" {
		ref, ok := s.opts.References.Get(req.Conversation)
		if !ok {
			sendJSONError(w, http.StatusNotFound, "unknown conversation")
			return
		}
		entries = []references.Entry{{Key: req.Conversation, Reference: ref}}
	}

	logic := s.opts.Notify(req.Text)
	var result NotifyResult
	for _, e := range entries {
		if err := s.adapter.ContinueConversation(r.Context(), e.Reference, logic); err != nil {
			s.logger.Warn("notify failed", "conversation", e.Key, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, e.Key+": "+err.Error())
			continue
		}
		result.Notified++
	}

	s.logger.Info("notify complete", "notified", result.Notified, "failed", result.Failed)
	writeJSON(w, http.StatusOK, result)
}

func parseNotifyRequest(r *http.Request) (*NotifyRequest, error) {
	req := &NotifyRequest{
		Text:         r.URL.Query().Get("text"),
		Conversation: r.URL.Query().Get("conversation"),
	}
	if r.Method == http.MethodPost && r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			return nil, err
		}
		if len(strings.TrimSpace(string(data))) > 0 {
			var body NotifyRequest
			if err := json.Unmarshal(data, &body); err != nil {
				return nil, errors.New("invalid JSON body")
			}
			if body.Text != "" {
				req.Text = body.Text
			}
			if body.Conversation != "" {
				req.Conversation = body.Conversation
			}
		}
	}
	if req.Text == "" {
		req.Text = DefaultNotifyText
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

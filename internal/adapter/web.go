// ABOUTME: Transport-neutral request/response shapes for the turn pipeline
// ABOUTME: Includes the net/http bindings used by the HTTP host

package adapter

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/turn"
)

// WebRequest is an inbound request. Parsed, when non-nil, is a body some
// earlier layer already decoded and takes precedence over Body.
type WebRequest struct {
	Header http.Header
	Body   io.Reader
	Parsed any
}

func (r *WebRequest) activity() (*activity.Activity, error) {
	if r.Parsed != nil {
		return activity.FromBody(r.Parsed)
	}
	return activity.Parse(r.Body)
}

// WebResponse receives the pipeline's answer. End is called exactly once.
type WebResponse interface {
	Status(code int)
	Send(body any)
	End()
}

// HTTPResponse writes a pipeline answer to an http.ResponseWriter. String
// bodies are sent as text, everything else as JSON.
type HTTPResponse struct {
	w      http.ResponseWriter
	status int
	body   any
	ended  bool
}

// NewHTTPResponse wraps w.
func NewHTTPResponse(w http.ResponseWriter) *HTTPResponse {
	return &HTTPResponse{w: w, status: http.StatusOK}
}

// Status implements WebResponse.
func (r *HTTPResponse) Status(code int) { r.status = code }

// Send implements WebResponse.
func (r *HTTPResponse) Send(body any) { r.body = body }

// End implements WebResponse.
func (r *HTTPResponse) End() {
	if r.ended {
		return
	}
	r.ended = true

	switch b := r.body.(type) {
	case nil:
		r.w.WriteHeader(r.status)
	case string:
		r.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		r.w.WriteHeader(r.status)
		_, _ = io.WriteString(r.w, b)
	case []byte:
		r.w.Header().Set("Content-Type", "application/octet-stream")
		r.w.WriteHeader(r.status)
		_, _ = r.w.Write(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			http.Error(r.w, "failed to encode response body", http.StatusInternalServerError)
			return
		}
		r.w.Header().Set("Content-Type", "application/json")
		r.w.WriteHeader(r.status)
		_, _ = r.w.Write(data)
	}
}

// HTTPHandler serves the turn pipeline over net/http. Failures have already
// been answered by the time ProcessActivity returns, so they are only logged.
func (a *Adapter) HTTPHandler(logic turn.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := &WebRequest{Header: r.Header, Body: r.Body}
		if err := a.ProcessActivity(r.Context(), req, NewHTTPResponse(w), logic); err != nil {
			a.logger.Debug("request answered with error status", "path", r.URL.Path, "error", err)
		}
	})
}

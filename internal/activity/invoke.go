// ABOUTME: InvokeResponse payload carried by invokeResponse control activities
// ABOUTME: Decodes the cached value regardless of whether logic built it typed or as a map

package activity

import (
	"encoding/json"
)

// InvokeResponse answers a synchronous invoke request.
type InvokeResponse struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

// NewInvokeResponse returns the control activity that caches resp for the turn.
func NewInvokeResponse(status int, body any) *Activity {
	return &Activity{
		Type:  TypeInvokeResponse,
		Value: &InvokeResponse{Status: status, Body: body},
	}
}

// AsInvokeResponse extracts an InvokeResponse from an activity value. It
// returns false when the value is absent, not shaped like one, or carries a
// status outside the three-digit HTTP range.
func AsInvokeResponse(value any) (*InvokeResponse, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case *InvokeResponse:
		return v, v != nil && validStatus(v.Status)
	case InvokeResponse:
		return &v, validStatus(v.Status)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var resp InvokeResponse
	if err := json.Unmarshal(data, &resp); err != nil || !validStatus(resp.Status) {
		return nil, false
	}
	return &resp, true
}

func validStatus(status int) bool {
	return status >= 100 && status <= 999
}

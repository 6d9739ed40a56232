// ABOUTME: Outbound dispatcher delivering a turn's activities to the gateway in order
// ABOUTME: Handles delay pacing, invoke-response caching, trace suppression, and replies

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/connector"
	"github.com/2389/coven-adapter/internal/metrics"
	"github.com/2389/coven-adapter/internal/turn"
)

// defaultDelay applies when a delay activity carries no numeric value.
const defaultDelay = time.Second

// invokeResponseKey caches the invokeResponse activity in turn state.
type invokeResponseKey struct{}

// SendActivities implements turn.Adapter. Activities are handled strictly in
// order and the result has one entry per input. The first failure stops the
// batch and no responses are returned.
func (a *Adapter) SendActivities(ctx context.Context, tc *turn.Context, activities []*activity.Activity) ([]*activity.ResourceResponse, error) {
	ctx, span := a.tracer.Start(ctx, "adapter.SendActivities")
	defer span.End()
	span.SetAttributes(attribute.Int("activity.count", len(activities)))

	responses := make([]*activity.ResourceResponse, 0, len(activities))
	for i, act := range activities {
		resp, err := a.dispatch(ctx, tc, act)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch failed")
			return nil, fmt.Errorf("activity %d (%s): %w", i, act.Type, err)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (a *Adapter) dispatch(ctx context.Context, tc *turn.Context, act *activity.Activity) (*activity.ResourceResponse, error) {
	switch act.Type {
	case activity.TypeDelay:
		if err := a.sleep(ctx, delayDuration(act.Value)); err != nil {
			metrics.OutboundActivities.WithLabelValues(act.Type, metrics.OutcomeError).Inc()
			return nil, err
		}
		metrics.OutboundActivities.WithLabelValues(act.Type, metrics.OutcomeOK).Inc()
		return &activity.ResourceResponse{}, nil

	case activity.TypeInvokeResponse:
		tc.State().Set(invokeResponseKey{}, act)
		metrics.OutboundActivities.WithLabelValues(act.Type, "cached").Inc()
		return &activity.ResourceResponse{}, nil

	case activity.TypeTrace:
		if act.ChannelID != activity.ChannelEmulator {
			metrics.OutboundActivities.WithLabelValues(act.Type, "dropped").Inc()
			return &activity.ResourceResponse{}, nil
		}
	}

	if err := requireAddress(act.ServiceURL, act.ConversationID()); err != nil {
		metrics.OutboundActivities.WithLabelValues(act.Type, metrics.OutcomeError).Inc()
		return nil, err
	}

	client := a.connectors.Client(act.ServiceURL)
	var (
		resp *activity.ResourceResponse
		err  error
	)
	if act.ReplyToID != "" {
		resp, err = client.ReplyToActivity(ctx, act.ConversationID(), act.ReplyToID, act)
	} else {
		resp, err = client.SendToConversation(ctx, act.ConversationID(), act)
	}
	metrics.OutboundActivities.WithLabelValues(act.Type, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &activity.ResourceResponse{}
	}
	return resp, nil
}

// UpdateActivity implements turn.Adapter.
func (a *Adapter) UpdateActivity(ctx context.Context, tc *turn.Context, act *activity.Activity) (*activity.ResourceResponse, error) {
	if err := requireAddress(act.ServiceURL, act.ConversationID()); err != nil {
		return nil, err
	}
	if act.ID == "" {
		return nil, fmt.Errorf("%w: update requires an activity id", ErrInvalidActivity)
	}
	return a.connectors.Client(act.ServiceURL).UpdateActivity(ctx, act.ConversationID(), act.ID, act)
}

// DeleteActivity implements turn.Adapter.
func (a *Adapter) DeleteActivity(ctx context.Context, tc *turn.Context, ref *activity.ConversationReference) error {
	var convID string
	if ref.Conversation != nil {
		convID = ref.Conversation.ID
	}
	if err := requireAddress(ref.ServiceURL, convID); err != nil {
		return err
	}
	if ref.ActivityID == "" {
		return fmt.Errorf("%w: delete requires an activity id", ErrInvalidActivity)
	}
	return a.connectors.Client(ref.ServiceURL).DeleteActivity(ctx, convID, ref.ActivityID)
}

// connectorFor returns the turn's cached client or one from the factory.
func (a *Adapter) connectorFor(tc *turn.Context, serviceURL string) connector.Client {
	if tc.Activity().ServiceURL == serviceURL {
		if c := ConnectorFrom(tc); c != nil {
			return c
		}
	}
	return a.connectors.Client(serviceURL)
}

func requireAddress(serviceURL, conversationID string) error {
	if serviceURL == "" {
		return fmt.Errorf("%w: missing serviceUrl", ErrInvalidActivity)
	}
	if conversationID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidActivity)
	}
	return nil
}

// delayDuration reads a delay activity's value as milliseconds.
func delayDuration(value any) time.Duration {
	var ms float64
	switch v := value.(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case float64:
		ms = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return defaultDelay
		}
		ms = f
	default:
		return defaultDelay
	}
	if ms < 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

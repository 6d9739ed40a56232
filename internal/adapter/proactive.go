// ABOUTME: Proactive messaging: resume or start conversations from stored references
// ABOUTME: Builds synthetic event activities and runs them through the turn pipeline without auth

package adapter

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/auth"
	"github.com/2389/coven-adapter/internal/connector"
	"github.com/2389/coven-adapter/internal/metrics"
	"github.com/2389/coven-adapter/internal/turn"
)

// ContinueConversation runs logic in the conversation identified by ref, as
// if a continueConversation event had arrived from it.
func (a *Adapter) ContinueConversation(ctx context.Context, ref *activity.ConversationReference, logic turn.Handler) error {
	ctx, span := a.tracer.Start(ctx, "adapter.ContinueConversation")
	defer span.End()

	act := activity.GetContinuationActivity(ref)
	span.SetAttributes(attribute.String("activity.conversation_id", act.ConversationID()))

	err := a.runProactive(ctx, act, logic)
	metrics.ProactiveTurnsTotal.WithLabelValues("continue", metrics.Outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "continue conversation failed")
	}
	return err
}

// CreateConversation asks the gateway to open a one-to-one conversation
// between ref.Bot and ref.User, then runs logic in it with a
// createConversation event.
func (a *Adapter) CreateConversation(ctx context.Context, ref *activity.ConversationReference, logic turn.Handler) error {
	ctx, span := a.tracer.Start(ctx, "adapter.CreateConversation")
	defer span.End()

	err := a.createConversation(ctx, ref, logic)
	metrics.ProactiveTurnsTotal.WithLabelValues("create", metrics.Outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create conversation failed")
	}
	return err
}

func (a *Adapter) createConversation(ctx context.Context, ref *activity.ConversationReference, logic turn.Handler) error {
	if ref == nil || ref.ServiceURL == "" {
		return ErrMissingServiceURL
	}

	params := &connector.ConversationParameters{
		IsGroup: false,
		Bot:     ref.Bot,
	}
	if ref.User != nil {
		params.Members = []*activity.ChannelAccount{ref.User}
	}
	var tenantID string
	if ref.Conversation != nil && ref.Conversation.TenantID != "" {
		tenantID = ref.Conversation.TenantID
		// Older gateways read the tenant from channel data only.
		params.ChannelData = map[string]any{"tenant": map[string]any{"id": tenantID}}
		params.TenantID = tenantID
	}

	resp, err := a.connectors.Client(ref.ServiceURL).CreateConversation(ctx, params)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	if resp == nil || resp.ID == "" {
		return fmt.Errorf("create conversation: %w", &connector.RPCError{
			Operation:  "CreateConversation",
			StatusCode: http.StatusOK,
			Body:       "response carries no conversation id",
		})
	}

	created := *ref
	created.Conversation = &activity.ConversationAccount{
		ID:       resp.ID,
		IsGroup:  false,
		TenantID: tenantID,
	}
	if resp.ServiceURL != "" {
		created.ServiceURL = resp.ServiceURL
	}

	act := activity.GetContinuationActivity(&created)
	act.Name = activity.EventCreateConversation

	a.logger.Info("conversation created",
		"conversation_id", resp.ID,
		"service_url", created.ServiceURL,
	)
	return a.runProactive(ctx, act, logic)
}

// runProactive runs the context, middleware and logic stages for a synthetic
// activity. The reference is the trust token, so no authentication happens.
func (a *Adapter) runProactive(ctx context.Context, act *activity.Activity, logic turn.Handler) error {
	id := &auth.Identity{
		Authenticated: true,
		Anonymous:     a.creds.IsAuthenticationDisabled(),
		AppID:         a.creds.AppID(),
	}
	ctx = auth.WithIdentity(ctx, id)

	tc := a.createContext(act, id)
	defer tc.Revoke()
	return a.runTurn(ctx, tc, logic)
}

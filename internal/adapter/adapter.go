// ABOUTME: Turn pipeline runner binding inbound requests to middleware and bot logic
// ABOUTME: Parses, authenticates, runs the turn, and answers with the phase-appropriate status

package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/auth"
	"github.com/2389/coven-adapter/internal/connector"
	"github.com/2389/coven-adapter/internal/credentials"
	"github.com/2389/coven-adapter/internal/metrics"
	"github.com/2389/coven-adapter/internal/turn"
	"github.com/2389/coven-adapter/internal/usertoken"
)

var (
	// ErrInvalidActivity is returned when an outgoing activity cannot be addressed.
	ErrInvalidActivity = errors.New("invalid activity")
	// ErrMissingServiceURL is returned when a conversation reference has no service URL.
	ErrMissingServiceURL = errors.New("conversation reference is missing a service url")
	// ErrMissingUser is returned when a token operation cannot resolve a user id.
	ErrMissingUser = errors.New("unable to resolve a user id")
	// ErrMissingConnection is returned when a token operation needs a connection name.
	ErrMissingConnection = errors.New("connection name is required")
	// ErrUserMismatch is returned when a sign-in link is requested for someone
	// other than the sender of the current activity.
	ErrUserMismatch = errors.New("user id does not match the activity sender")
)

// ProcessError is returned by ProcessActivity after the response has been
// written when the final status is 400 or above.
type ProcessError struct {
	Status int
	Err    error
}

func (e *ProcessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("process activity: status %d", e.Status)
	}
	return fmt.Sprintf("process activity: status %d: %v", e.Status, e.Err)
}

// Unwrap returns the error captured during the turn, if any.
func (e *ProcessError) Unwrap() error { return e.Err }

// TurnErrorHandler gets a failed turn's error while the context is still live.
// Returning nil marks the turn as handled.
type TurnErrorHandler func(ctx context.Context, tc *turn.Context, err error) error

// Options carries optional collaborators. Zero values select the defaults.
type Options struct {
	// Authenticator defaults to a JWT authenticator built from the credentials.
	Authenticator auth.Authenticator
	// Connectors defaults to REST clients sharing the credentials' HTTP client.
	Connectors *connector.Factory
	// Tokens defaults to REST token-service clients sharing the same HTTP client.
	Tokens *usertoken.Factory
	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Adapter connects bot logic to channel gateways.
type Adapter struct {
	creds         *credentials.Resolver
	authenticator auth.Authenticator
	connectors    *connector.Factory
	tokens        *usertoken.Factory
	middleware    *turn.MiddlewareSet
	onTurnError   TurnErrorHandler
	tracer        trace.Tracer
	logger        *slog.Logger

	emulatingOAuthCards atomic.Bool
	sleep               func(ctx context.Context, d time.Duration) error
}

// New creates an adapter for the given credentials.
func New(creds *credentials.Resolver, opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	var outbound *http.Client
	if opts.Connectors == nil || opts.Tokens == nil {
		outbound = creds.HTTPClient(context.Background())
	}
	if opts.Authenticator == nil {
		opts.Authenticator = auth.NewJWTAuthenticator(creds, logger)
	}
	if opts.Connectors == nil {
		opts.Connectors = connector.NewFactory(outbound, logger)
	}
	if opts.Tokens == nil {
		opts.Tokens = usertoken.NewFactory(outbound, logger)
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/2389/coven-adapter/internal/adapter")
	}

	return &Adapter{
		creds:         creds,
		authenticator: opts.Authenticator,
		connectors:    opts.Connectors,
		tokens:        opts.Tokens,
		middleware:    turn.NewMiddlewareSet(),
		tracer:        opts.Tracer,
		logger:        logger.With("component", "adapter"),
		sleep:         sleepContext,
	}
}

// Use appends middleware. Leading edges run in registration order.
func (a *Adapter) Use(m ...turn.Middleware) *Adapter {
	a.middleware.Use(m...)
	return a
}

// OnTurnError installs a handler for errors escaping the middleware chain.
func (a *Adapter) OnTurnError(h TurnErrorHandler) *Adapter {
	a.onTurnError = h
	return a
}

// Credentials returns the resolver the adapter was built with.
func (a *Adapter) Credentials() *credentials.Resolver { return a.creds }

// ProcessActivity runs one inbound request through the turn pipeline and
// writes the response to res. If the final status is 400 or above the
// captured error is also returned as a *ProcessError.
func (a *Adapter) ProcessActivity(ctx context.Context, req *WebRequest, res WebResponse, logic turn.Handler) error {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "adapter.ProcessActivity", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	var (
		status  int
		body    any
		turnErr error
		act     *activity.Activity
	)

	act, turnErr = req.activity()
	if turnErr != nil {
		status = http.StatusBadRequest
	} else {
		span.SetAttributes(
			attribute.String("activity.type", act.Type),
			attribute.String("activity.channel_id", act.ChannelID),
			attribute.String("activity.conversation_id", act.ConversationID()),
		)
		status, body, turnErr = a.authenticateAndRun(ctx, req, act, logic)
	}

	if turnErr != nil {
		body = turnErr.Error()
		span.RecordError(turnErr)
	}
	if status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	res.Status(status)
	if body != nil {
		res.Send(body)
	}
	res.End()

	channel := "unknown"
	if act != nil && act.ChannelID != "" {
		channel = act.ChannelID
	}
	metrics.TurnsTotal.WithLabelValues(channel, fmt.Sprint(status)).Inc()
	metrics.TurnDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())

	if status >= http.StatusBadRequest {
		a.logger.Warn("turn failed",
			"status", status,
			"channel_id", channel,
			"error", turnErr,
		)
		return &ProcessError{Status: status, Err: turnErr}
	}

	a.logger.Debug("turn complete",
		"status", status,
		"channel_id", channel,
		"activity_type", act.Type,
		"duration", time.Since(start),
	)
	return nil
}

func (a *Adapter) authenticateAndRun(ctx context.Context, req *WebRequest, act *activity.Activity, logic turn.Handler) (int, any, error) {
	id, err := a.authenticator.Authenticate(ctx, req.Header.Get("Authorization"), act)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}

	ctx = auth.WithIdentity(ctx, id)
	tc := a.createContext(act, id)
	defer tc.Revoke()

	if err := a.runTurn(ctx, tc, logic); err != nil {
		return http.StatusInternalServerError, nil, err
	}

	if act.Type != activity.TypeInvoke {
		return http.StatusOK, nil, nil
	}
	if cached, ok := turn.Value[*activity.Activity](tc.State(), invokeResponseKey{}); ok {
		if ir, ok := activity.AsInvokeResponse(cached.Value); ok {
			return ir.Status, ir.Body, nil
		}
	}
	return http.StatusNotImplemented, nil, nil
}

// createContext builds a turn context carrying the identity and the
// connector client for the activity's service URL.
func (a *Adapter) createContext(act *activity.Activity, id *auth.Identity) *turn.Context {
	tc := turn.NewContext(a, act)
	tc.State().Set(identityKey{}, id)
	if act.ServiceURL != "" {
		tc.State().Set(connectorKey{}, a.connectors.Client(act.ServiceURL))
	}
	return tc
}

// runTurn executes middleware and logic, converting panics into errors and
// giving the turn error handler a chance to absorb failures.
func (a *Adapter) runTurn(ctx context.Context, tc *turn.Context, logic turn.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()

	err = a.middleware.Run(ctx, tc, logic)
	if err != nil && a.onTurnError != nil {
		a.logger.Debug("invoking turn error handler", "error", err)
		err = a.onTurnError(ctx, tc, err)
	}
	return err
}

type identityKey struct{}

type connectorKey struct{}

// IdentityFrom returns the identity that authenticated the turn.
func IdentityFrom(tc *turn.Context) *auth.Identity {
	id, _ := turn.Value[*auth.Identity](tc.State(), identityKey{})
	return id
}

// ConnectorFrom returns the gateway client for the turn's service URL, or nil.
func ConnectorFrom(tc *turn.Context) connector.Client {
	c, _ := turn.Value[connector.Client](tc.State(), connectorKey{})
	return c
}

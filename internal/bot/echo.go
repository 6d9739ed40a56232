// ABOUTME: Reference bot logic served by coven-adapter: echoes messages and handles sign-in
// ABOUTME: Exercises the token broker through login, logout and magic-code commands

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/turn"
	"github.com/2389/coven-adapter/internal/usertoken"
)

// InvokeVerifyState is the invoke name a channel uses to hand back a sign-in code.
const InvokeVerifyState = "signin/verifyState"

var magicCode = regexp.MustCompile(`^\d{6}$`)

// TokenBroker is the subset of the adapter's token operations the bot uses.
type TokenBroker interface {
	GetUserToken(ctx context.Context, tc *turn.Context, connectionName, magicCode string) (*usertoken.TokenResponse, error)
	GetSignInLink(ctx context.Context, tc *turn.Context, connectionName string) (string, error)
	SignOutUser(ctx context.Context, tc *turn.Context, connectionName, userID string) error
}

// Echo replies to every message and manages the user's sign-in for one
// OAuth connection.
type Echo struct {
	tokens     TokenBroker
	connection string
	logger     *slog.Logger
}

// NewEcho creates the bot. An empty connectionName disables the sign-in
// commands. Pass nil logger for default.
func NewEcho(tokens TokenBroker, connectionName string, logger *slog.Logger) *Echo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Echo{
		tokens:     tokens,
		connection: connectionName,
		logger:     logger.With("component", "bot"),
	}
}

// OnTurn is the turn handler.
func (e *Echo) OnTurn(ctx context.Context, tc *turn.Context) error {
	act := tc.Activity()
	switch act.Type {
	case activity.TypeMessage:
		return e.onMessage(ctx, tc, strings.TrimSpace(act.Text))
	case activity.TypeConversationUpdate:
		return e.onMembersAdded(ctx, tc)
	case activity.TypeInvoke:
		return e.onInvoke(ctx, tc)
	}
	return nil
}

func (e *Echo) onMessage(ctx context.Context, tc *turn.Context, text string) error {
	switch {
	case strings.EqualFold(text, "login"):
		return e.login(ctx, tc)
	case strings.EqualFold(text, "logout"):
		return e.logout(ctx, tc)
	case e.connection != "" && magicCode.MatchString(text):
		return e.redeem(ctx, tc, text)
	}

	_, err := tc.SendActivities(ctx, []*activity.Activity{
		{Type: activity.TypeTyping},
		activity.NewMessage(echoReply(text)),
	})
	return err
}

func echoReply(input string) string {
	if input == "" {
		return "I received an empty message."
	}
	return fmt.Sprintf("Echo: **%s**", input)
}

func (e *Echo) login(ctx context.Context, tc *turn.Context) error {
	if e.connection == "" {
		_, err := tc.SendText(ctx, "Sign-in is not configured for this bot.")
		return err
	}

	tok, err := e.tokens.GetUserToken(ctx, tc, e.connection, "")
	if err != nil {
		return fmt.Errorf("checking token: %w", err)
	}
	if tok != nil {
		_, err = tc.SendText(ctx, "You are already signed in.")
		return err
	}

	link, err := e.tokens.GetSignInLink(ctx, tc, e.connection)
	if err != nil {
		return fmt.Errorf("getting sign-in link: %w", err)
	}
	_, err = tc.SendText(ctx, "Sign in here, then send me the code you receive: "+link)
	return err
}

func (e *Echo) logout(ctx context.Context, tc *turn.Context) error {
	if e.connection == "" {
		_, err := tc.SendText(ctx, "Sign-in is not configured for this bot.")
		return err
	}
	if err := e.tokens.SignOutUser(ctx, tc, e.connection, ""); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	_, err := tc.SendText(ctx, "You have been signed out.")
	return err
}

func (e *Echo) redeem(ctx context.Context, tc *turn.Context, code string) error {
	tok, err := e.tokens.GetUserToken(ctx, tc, e.connection, code)
	if err != nil {
		return fmt.Errorf("redeeming code: %w", err)
	}
	if tok == nil {
		_, err = tc.SendText(ctx, "That code did not work. Say \"login\" to try again.")
		return err
	}
	e.logger.Info("user signed in", "user_id", tc.Activity().FromID(), "connection", e.connection)
	_, err = tc.SendText(ctx, "You are now signed in.")
	return err
}

func (e *Echo) onMembersAdded(ctx context.Context, tc *turn.Context) error {
	act := tc.Activity()
	var greetings []*activity.Activity
	for _, m := range act.MembersAdded {
		if act.Recipient != nil && m.ID == act.Recipient.ID {
			continue
		}
		name := m.Name
		if name == "" {
			name = "there"
		}
		greetings = append(greetings, activity.NewMessage(fmt.Sprintf("Welcome, %s! Say anything and I will echo it back.", name)))
	}
	if len(greetings) == 0 {
		return nil
	}
	_, err := tc.SendActivities(ctx, greetings)
	return err
}

// onInvoke answers sign-in verification. Other invokes get no response,
// which the adapter reports as 501.
func (e *Echo) onInvoke(ctx context.Context, tc *turn.Context) error {
	act := tc.Activity()
	if act.Name != InvokeVerifyState || e.connection == "" {
		return nil
	}

	var state string
	if v, ok := act.Value.(map[string]any); ok {
		state, _ = v["state"].(string)
	}

	tok, err := e.tokens.GetUserToken(ctx, tc, e.connection, state)
	if err != nil {
		return fmt.Errorf("verifying sign-in state: %w", err)
	}

	status := http.StatusOK
	if tok == nil {
		status = http.StatusPreconditionFailed
	}
	_, err = tc.SendActivity(ctx, activity.NewInvokeResponse(status, nil))
	return err
}

// Notify returns a handler that posts text into a resumed conversation.
func Notify(text string) turn.Handler {
	return func(ctx context.Context, tc *turn.Context) error {
		_, err := tc.SendText(ctx, text)
		return err
	}
}

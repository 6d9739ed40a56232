// ABOUTME: Per-turn execution context handed to middleware and bot logic
// ABOUTME: Addresses outgoing activities, runs send/update/delete hooks, and is revoked after the turn

package turn

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/2389/coven-adapter/internal/activity"
)

// ErrContextRevoked is returned (or panicked with, for accessors) when a turn
// context is used after its turn completed.
var ErrContextRevoked = errors.New("turn context used after the turn completed")

// Adapter is the capability a turn context delegates outbound work to.
type Adapter interface {
	SendActivities(ctx context.Context, tc *Context, activities []*activity.Activity) ([]*activity.ResourceResponse, error)
	UpdateActivity(ctx context.Context, tc *Context, a *activity.Activity) (*activity.ResourceResponse, error)
	DeleteActivity(ctx context.Context, tc *Context, ref *activity.ConversationReference) error
}

// SendHook observes or rewrites outgoing activities. It must call next to let
// the send proceed.
type SendHook func(ctx context.Context, tc *Context, activities []*activity.Activity, next func(ctx context.Context) ([]*activity.ResourceResponse, error)) ([]*activity.ResourceResponse, error)

// UpdateHook observes or rewrites an activity update.
type UpdateHook func(ctx context.Context, tc *Context, a *activity.Activity, next func(ctx context.Context) (*activity.ResourceResponse, error)) (*activity.ResourceResponse, error)

// DeleteHook observes an activity deletion.
type DeleteHook func(ctx context.Context, tc *Context, ref *activity.ConversationReference, next func(ctx context.Context) error) error

// Context is the state of one turn. It is owned by the pipeline that created
// it and must not be retained after the turn; once revoked every operation fails.
type Context struct {
	adapter  Adapter
	activity *activity.Activity
	state    *State

	sendHooks   []SendHook
	updateHooks []UpdateHook
	deleteHooks []DeleteHook

	responded atomic.Bool
	revoked   atomic.Bool
}

// NewContext binds a turn context to adapter and the triggering activity.
func NewContext(adapter Adapter, act *activity.Activity) *Context {
	return &Context{
		adapter:  adapter,
		activity: act,
		state:    newState(),
	}
}

// Revoke ends the context's lifetime. It is idempotent.
func (c *Context) Revoke() {
	c.revoked.Store(true)
}

// IsRevoked reports whether the turn has completed. It never panics.
func (c *Context) IsRevoked() bool {
	return c.revoked.Load()
}

func (c *Context) mustBeLive() {
	if c.revoked.Load() {
		panic(ErrContextRevoked)
	}
}

func (c *Context) check() error {
	if c.revoked.Load() {
		return ErrContextRevoked
	}
	return nil
}

// Activity returns the activity that triggered the turn.
func (c *Context) Activity() *activity.Activity {
	c.mustBeLive()
	return c.activity
}

// Adapter returns the adapter that owns the turn.
func (c *Context) Adapter() Adapter {
	c.mustBeLive()
	return c.adapter
}

// State returns the turn-scoped store.
func (c *Context) State() *State {
	c.mustBeLive()
	return c.state
}

// Responded reports whether a non-trace activity has been sent this turn.
func (c *Context) Responded() bool {
	c.mustBeLive()
	return c.responded.Load()
}

// OnSendActivities registers a hook run before activities reach the adapter.
func (c *Context) OnSendActivities(h SendHook) *Context {
	c.mustBeLive()
	c.sendHooks = append(c.sendHooks, h)
	return c
}

// OnUpdateActivity registers a hook run before updates reach the adapter.
func (c *Context) OnUpdateActivity(h UpdateHook) *Context {
	c.mustBeLive()
	c.updateHooks = append(c.updateHooks, h)
	return c
}

// OnDeleteActivity registers a hook run before deletions reach the adapter.
func (c *Context) OnDeleteActivity(h DeleteHook) *Context {
	c.mustBeLive()
	c.deleteHooks = append(c.deleteHooks, h)
	return c
}

// SendText sends a plain message into the turn's conversation.
func (c *Context) SendText(ctx context.Context, text string) (*activity.ResourceResponse, error) {
	return c.SendActivity(ctx, activity.NewMessage(text))
}

// SendActivity sends one activity and returns its response.
func (c *Context) SendActivity(ctx context.Context, a *activity.Activity) (*activity.ResourceResponse, error) {
	responses, err := c.SendActivities(ctx, []*activity.Activity{a})
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return responses[0], nil
}

// SendActivities addresses copies of activities to the turn's conversation,
// runs the send hooks, and hands them to the adapter in order.
func (c *Context) SendActivities(ctx context.Context, activities []*activity.Activity) ([]*activity.ResourceResponse, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	ref := activity.GetConversationReference(c.activity)
	out := make([]*activity.Activity, 0, len(activities))
	for _, a := range activities {
		if a == nil {
			continue
		}
		cp := activity.ApplyConversationReference(a.Clone(), ref, false)
		if cp.Type == "" {
			cp.Type = activity.TypeMessage
		}
		out = append(out, cp)
	}

	last := func(ctx context.Context) ([]*activity.ResourceResponse, error) {
		if err := c.check(); err != nil {
			return nil, err
		}
		responses, err := c.adapter.SendActivities(ctx, c, out)
		if err != nil {
			return nil, err
		}
		for _, a := range out {
			if a.Type != activity.TypeTrace {
				c.responded.Store(true)
				break
			}
		}
		return responses, nil
	}
	return c.runSendHooks(ctx, 0, out, last)
}

func (c *Context) runSendHooks(ctx context.Context, i int, out []*activity.Activity, last func(context.Context) ([]*activity.ResourceResponse, error)) ([]*activity.ResourceResponse, error) {
	if i >= len(c.sendHooks) {
		return last(ctx)
	}
	return c.sendHooks[i](ctx, c, out, func(ctx context.Context) ([]*activity.ResourceResponse, error) {
		return c.runSendHooks(ctx, i+1, out, last)
	})
}

// UpdateActivity replaces a previously sent activity.
func (c *Context) UpdateActivity(ctx context.Context, a *activity.Activity) (*activity.ResourceResponse, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	ref := activity.GetConversationReference(c.activity)
	upd := activity.ApplyConversationReference(a.Clone(), ref, false)
	if upd.Type == "" {
		upd.Type = activity.TypeMessage
	}
	upd.ID = a.ID

	var run func(ctx context.Context, i int) (*activity.ResourceResponse, error)
	run = func(ctx context.Context, i int) (*activity.ResourceResponse, error) {
		if i >= len(c.updateHooks) {
			if err := c.check(); err != nil {
				return nil, err
			}
			return c.adapter.UpdateActivity(ctx, c, upd)
		}
		return c.updateHooks[i](ctx, c, upd, func(ctx context.Context) (*activity.ResourceResponse, error) {
			return run(ctx, i+1)
		})
	}
	return run(ctx, 0)
}

// DeleteActivity removes a previously sent activity from the conversation.
func (c *Context) DeleteActivity(ctx context.Context, activityID string) error {
	if err := c.check(); err != nil {
		return err
	}
	ref := activity.GetConversationReference(c.activity)
	ref.ActivityID = activityID

	var run func(ctx context.Context, i int) error
	run = func(ctx context.Context, i int) error {
		if i >= len(c.deleteHooks) {
			if err := c.check(); err != nil {
				return err
			}
			return c.adapter.DeleteActivity(ctx, c, ref)
		}
		return c.deleteHooks[i](ctx, c, ref, func(ctx context.Context) error {
			return run(ctx, i+1)
		})
	}
	return run(ctx, 0)
}

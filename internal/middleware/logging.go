// ABOUTME: Middleware that logs each turn and the activities it sends
// ABOUTME: Emits one start and one finish record per turn with timing and outcome

package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/turn"
)

// Logging records turn boundaries at debug level and failures at warn.
type Logging struct {
	logger *slog.Logger
}

// NewLogging creates the middleware. Pass nil logger for default.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger.With("component", "turn")}
}

// OnTurn implements turn.Middleware.
func (l *Logging) OnTurn(ctx context.Context, tc *turn.Context, next turn.Next) error {
	act := tc.Activity()
	log := l.logger.With(
		"activity_type", act.Type,
		"activity_id", act.ID,
		"channel_id", act.ChannelID,
		"conversation_id", act.ConversationID(),
	)

	tc.OnSendActivities(func(ctx context.Context, tc *turn.Context, acts []*activity.Activity, next func(context.Context) ([]*activity.ResourceResponse, error)) ([]*activity.ResourceResponse, error) {
		types := make([]string, len(acts))
		for i, a := range acts {
			types[i] = a.Type
		}
		log.Debug("sending activities", "types", types)
		return next(ctx)
	})

	start := time.Now()
	log.Debug("turn started", "from_id", act.FromID())

	err := next(ctx)
	if err != nil {
		log.Warn("turn failed", "error", err, "duration", time.Since(start))
		return err
	}

	log.Debug("turn finished", "responded", tc.Responded(), "duration", time.Since(start))
	return nil
}

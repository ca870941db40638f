package gateway

import (
	"context"

	"github.com/MrSnakeDoc/warden/internal/logger"
)

// The chat platform is an external collaborator. This package holds the
// default implementations used when the process runs without one
// attached: notifications land in the log, membership checks pass.

// LogNotifier writes owner notifications to the process log instead of a
// chat gateway.
type LogNotifier struct {
	Log logger.Logger
}

func (n *LogNotifier) Notify(_ context.Context, userID int64, message string) error {
	n.Log.Info("owner notification",
		logger.Int64("user_id", userID),
		logger.String("message", message))
	return nil
}

// AllowAll treats every user as a member of every channel. Wired when no
// membership backend is configured, which makes the eligibility gate a
// pass-through.
type AllowAll struct{}

func (AllowAll) IsMember(_ context.Context, _ string, _ int64) (bool, error) {
	return true, nil
}

// Package notify delivers application status change notices. Delivery is best effort
// and never blocks the request that caused the change.
package notify

import (
	"context"
	"time"

	"github.com/localnerve/jam-build-intakedb/internal/logger"
)

// StatusChange describes a committed application transition.
type StatusChange struct {
	ApplicationID  string
	FormID         string
	ApplicantID    string
	ApplicantName  string
	ApplicantEmail string
	From           string
	To             string
	ChangedBy      string
	At             time.Time
}

// Notifier is told about committed transitions.
type Notifier interface {
	ApplicationStatusChanged(ctx context.Context, change StatusChange) error
}

// LogNotifier records notices in the log only.
type LogNotifier struct {
	Log logger.Logger
}

func (n *LogNotifier) ApplicationStatusChanged(_ context.Context, change StatusChange) error {
	n.Log.Info("application status changed", map[string]interface{}{
		"applicationId": change.ApplicationID,
		"formId":        change.FormID,
		"from":          change.From,
		"to":            change.To,
		"changedBy":     change.ChangedBy,
	})
	return nil
}

// Dispatcher runs notifiers off the request path.
type Dispatcher struct {
	Notifier Notifier
	Log      logger.Logger
	Timeout  time.Duration
}

// Dispatch sends change in its own goroutine with a detached, bounded context.
// done, when non-nil, is closed after the attempt.
func (d *Dispatcher) Dispatch(change StatusChange, done chan<- struct{}) {
	if d == nil || d.Notifier == nil {
		if done != nil {
			close(done)
		}
		return
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	go func() {
		if done != nil {
			defer close(done)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := d.Notifier.ApplicationStatusChanged(ctx, change); err != nil && d.Log != nil {
			d.Log.WithError(err).Warn("status notification failed", map[string]interface{}{
				"applicationId": change.ApplicationID,
				"to":            change.To,
			})
		}
	}()
}

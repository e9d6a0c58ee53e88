package channels

import (
	"context"

	"alert-publisher/internal/models"
)

// Result is the outcome of one delivery attempt on one channel. Failures are
// data, not errors: adapters capture timeouts and transport faults here and
// never propagate them to the caller.
type Result struct {
	Success        bool
	Skipped        bool
	MessageID      string
	RecipientCount int
	SuccessCount   int
	FailureCount   int
	Message        string
}

// Channel is a delivery channel for published alerts. Implementations own
// their timeout and channel-local retry policy; the record-level retry sweep
// lives in the publisher. A real telecom or FCM client can replace the
// simulated adapters behind this interface without touching the publisher.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, alert models.AlertMessage) Result
}

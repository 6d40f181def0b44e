package httputil

import (
	"context"
	"time"

	"github.com/findirfin/ringil/internal/pkg/constants"
)

// Operation types used to pick a timeout
const (
	OpStorage    = "storage"
	OpEvents     = "events"
	OpCompletion = "completion"
)

// TimeoutConfig holds timeout configurations for different operations
type TimeoutConfig struct {
	Default time.Duration
	Short   time.Duration

	// Completion bounds provider calls; zero leaves them to the transport
	Completion time.Duration
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	Default: constants.DatabaseTimeout,
	Short:   constants.MessagingTimeout,
}

// WithTimeout derives a context from parent that expires after duration.
// A non-positive duration only adds cancellation.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, duration)
}

// TimeoutFor returns the timeout config assigns to operationType
func TimeoutFor(operationType string, config TimeoutConfig) time.Duration {
	switch operationType {
	case OpEvents:
		return config.Short
	case OpCompletion:
		return config.Completion
	default:
		return config.Default
	}
}

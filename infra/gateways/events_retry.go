package gateways

import (
	"context"
	"math"
	"time"

	infra "github.com/giovaniif/vending-machine/infra"
	"github.com/giovaniif/vending-machine/infra/logging"
	"github.com/giovaniif/vending-machine/protocols"
	"go.uber.org/zap"
)

type RetryFunc func() error

// RetryWithBackoff retries operation while it fails with a retriable error,
// doubling the delay after every attempt.
func RetryWithBackoff(operation RetryFunc, sleeper protocols.Sleeper, maxRetries int, baseDelay time.Duration) RetryFunc {
	return func() error {
		var lastError error

		for i := 0; i < maxRetries; i++ {
			err := operation()
			if err == nil {
				return nil
			}
			lastError = err
			if !infra.IsRetriable(err) || i == maxRetries-1 {
				break
			}

			delay := time.Duration(math.Pow(2, float64(i))) * baseDelay
			sleeper.Sleep(delay)
		}

		return lastError
	}
}

// RetryingEventPublisher retries transient publish failures.
type RetryingEventPublisher struct {
	publisher  protocols.EventPublisher
	sleeper    protocols.Sleeper
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewRetryingEventPublisher(publisher protocols.EventPublisher, sleeper protocols.Sleeper, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *RetryingEventPublisher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryingEventPublisher{
		publisher:  publisher,
		sleeper:    sleeper,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func (p *RetryingEventPublisher) Publish(ctx context.Context, events ...protocols.VendEvent) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := p.publisher.Publish(ctx, events...)
		if err != nil {
			logging.FromContext(ctx, p.logger).Warn("publishing vend events failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}
	return RetryWithBackoff(operation, p.sleeper, p.maxRetries, p.baseDelay)()
}

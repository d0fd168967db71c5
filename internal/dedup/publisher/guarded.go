package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/ports"
	"outletdedup/pkg/platform/circuit"
	"outletdedup/pkg/platform/sentinel"
)

// Guarded stops calling a failing publisher until its breaker admits a probe,
// so an unreachable broker does not add a produce timeout to every run.
type Guarded struct {
	next    ports.SummaryPublisher
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next ports.SummaryPublisher, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Publish(ctx context.Context, summary models.Summary) error {
	if !g.breaker.Allow() {
		return fmt.Errorf("%s circuit open: %w", g.breaker.Name(), sentinel.ErrUnavailable)
	}
	err := g.next.Publish(ctx, summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "summary publisher circuit opened",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if err != nil {
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "summary publisher circuit closed", "breaker", g.breaker.Name())
	}
	return nil
}

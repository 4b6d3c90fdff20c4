package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// Alerts listens on the event bus and forwards the lifecycle events an
// operator cares about: loss-limit violations, settlements, and early exits.
type Alerts struct {
	bus      domain.EventBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewAlerts creates an Alerts listener.
func NewAlerts(bus domain.EventBus, notifier *Notifier, logger *slog.Logger) *Alerts {
	return &Alerts{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "alerts")),
	}
}

// Run subscribes to the alert topics and dispatches notifications until the
// context is cancelled.
func (a *Alerts) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.watch(ctx, domain.TopicCommitmentViolated, a.onViolated) })
	g.Go(func() error { return a.watch(ctx, domain.TopicCommitmentSettled, a.onSettled) })
	g.Go(func() error { return a.watch(ctx, domain.TopicEarlyExit, a.onEarlyExit) })

	return g.Wait()
}

// watch consumes one topic and hands each payload to the handler. Handler
// errors are logged, not fatal; a malformed event must not stop the loop.
func (a *Alerts) watch(ctx context.Context, topic string, handle func(context.Context, []byte) error) error {
	ch, err := a.bus.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handle(ctx, payload); err != nil {
				a.logger.WarnContext(ctx, "alert dispatch failed",
					slog.String("topic", topic),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (a *Alerts) onViolated(ctx context.Context, payload []byte) error {
	var ev domain.ValueUpdatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode violation event: %w", err)
	}

	msg := fmt.Sprintf("Commitment %s breached its loss limit: value %d, loss %d%%.",
		ev.CommitmentID, ev.NewValue, ev.LossPercent)
	return a.notifier.Notify(ctx, domain.TopicCommitmentViolated, "Loss limit violated", msg)
}

func (a *Alerts) onSettled(ctx context.Context, payload []byte) error {
	var ev domain.SettledEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode settlement event: %w", err)
	}

	msg := fmt.Sprintf("Commitment %s settled, %d returned to %s.",
		ev.CommitmentID, ev.Amount, ev.Owner)
	return a.notifier.Notify(ctx, domain.TopicCommitmentSettled, "Commitment settled", msg)
}

func (a *Alerts) onEarlyExit(ctx context.Context, payload []byte) error {
	var ev domain.EarlyExitEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode early exit event: %w", err)
	}

	msg := fmt.Sprintf("Commitment %s exited early by %s, penalty %d, remaining %d.",
		ev.CommitmentID, ev.Caller, ev.Penalty, ev.Remaining)
	return a.notifier.Notify(ctx, domain.TopicEarlyExit, "Early exit", msg)
}

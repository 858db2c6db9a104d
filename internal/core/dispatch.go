package core

import (
	"context"

	"coopquality/pkg/domain"
)

// AlertDispatcher hands freshly committed alerts to delivery (websocket push,
// email, ...). Delivery is best effort.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alerts []domain.Alert) error
}

// AlertDispatcherFunc adapts a function to AlertDispatcher.
type AlertDispatcherFunc func(ctx context.Context, alerts []domain.Alert) error

// Dispatch implements AlertDispatcher.
func (f AlertDispatcherFunc) Dispatch(ctx context.Context, alerts []domain.Alert) error {
	return f(ctx, alerts)
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, []domain.Alert) error { return nil }

func (s *Service) dispatch(ctx context.Context, alerts []domain.Alert) {
	if len(alerts) == 0 {
		return
	}
	if err := s.opts.dispatcher.Dispatch(ctx, alerts); err != nil {
		s.opts.logger.Warn("alert dispatch failed", "alerts", len(alerts), "error", err)
	}
}

package workflow

import (
	"context"

	"guidora/internal/stage"
)

// Health runs every registered handler's health check in stage order.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.stageOrder))
	for _, from := range m.stageOrder {
		handler := m.handlers[from]
		if handler == nil {
			continue
		}
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}

// Ready reports whether every registered stage handler is healthy.
func (m *Manager) Ready(ctx context.Context) bool {
	for _, health := range m.Health(ctx) {
		if !health.Ready {
			return false
		}
	}
	return true
}

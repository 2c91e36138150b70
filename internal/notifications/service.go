package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"guidora/internal/config"
)

const userAgent = "Guidora-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyDuplicateRejected(ctx context.Context, unitID, nearestID string, similarity float64) error
	NotifyBudgetWarning(ctx context.Context, window string, spent, limit float64) error
	NotifyBudgetExceeded(ctx context.Context, provider string, amount float64) error
	NotifyBatchScheduled(ctx context.Context, scheduled, deferred int) error
	NotifyPublished(ctx context.Context, title, language string) error
	NotifyPublishFailed(ctx context.Context, title, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		prefs:    cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	prefs    config.Notifications
}

func (n *ntfyService) NotifyDuplicateRejected(ctx context.Context, unitID, nearestID string, similarity float64) error {
	if !n.prefs.Duplicates {
		return nil
	}
	data := payload{
		title:   "Guidora - Duplicate Rejected",
		message: fmt.Sprintf("Unit %s rejected: %.0f%% similar to %s", unitID, similarity*100, nearestID),
		tags:    []string{"guidora", "duplicate", "rejected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBudgetWarning(ctx context.Context, window string, spent, limit float64) error {
	if !n.prefs.Budget {
		return nil
	}
	data := payload{
		title:    "Guidora - Budget Warning",
		message:  fmt.Sprintf("Spend approaching the %s limit: $%.2f of $%.2f", window, spent, limit),
		tags:     []string{"guidora", "budget", "warning"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBudgetExceeded(ctx context.Context, provider string, amount float64) error {
	if !n.prefs.Budget {
		return nil
	}
	data := payload{
		title:    "Guidora - Budget Exceeded",
		message:  fmt.Sprintf("Reservation of $%.4f for %s denied: budget exhausted", amount, provider),
		tags:     []string{"guidora", "budget", "exceeded"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchScheduled(ctx context.Context, scheduled, deferred int) error {
	if !n.prefs.Scheduling {
		return nil
	}
	message := fmt.Sprintf("Scheduled %d units for publishing", scheduled)
	if deferred > 0 {
		message = fmt.Sprintf("%s (%d deferred)", message, deferred)
	}
	data := payload{
		title:   "Guidora - Batch Scheduled",
		message: message,
		tags:    []string{"guidora", "schedule", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublished(ctx context.Context, title, language string) error {
	if !n.prefs.Publishing {
		return nil
	}
	data := payload{
		title:    "Guidora - Published",
		message:  fmt.Sprintf("Published: %s (%s)", strings.TrimSpace(title), language),
		tags:     []string{"guidora", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishFailed(ctx context.Context, title, reason string) error {
	if !n.prefs.Publishing {
		return nil
	}
	message := fmt.Sprintf("Publish failed: %s", strings.TrimSpace(title))
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Guidora - Publish Failed",
		message:  message,
		tags:     []string{"guidora", "publish", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.prefs.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Guidora - Error",
		message:  builder.String(),
		tags:     []string{"guidora", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Guidora - Test",
		message:  "Notification system test",
		tags:     []string{"guidora", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDuplicateRejected(context.Context, string, string, float64) error { return nil }
func (noopService) NotifyBudgetWarning(context.Context, string, float64, float64) error    { return nil }
func (noopService) NotifyBudgetExceeded(context.Context, string, float64) error            { return nil }
func (noopService) NotifyBatchScheduled(context.Context, int, int) error                   { return nil }
func (noopService) NotifyPublished(context.Context, string, string) error                  { return nil }
func (noopService) NotifyPublishFailed(context.Context, string, string) error              { return nil }
func (noopService) NotifyError(context.Context, error, string) error                       { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }

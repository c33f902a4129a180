package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LogSink writes alerts to the structured log; always configured so an
// alert is never silently lost even with no webhook set up.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, alert Alert) error {
	fields := []zap.Field{
		zap.String("event_id", alert.EventID.String()),
		zap.String("headline", alert.Headline),
		zap.String("severity", alert.Severity),
		zap.Int("escalation_score", alert.EscalationScore),
		zap.String("reason", alert.Reason),
	}
	if alert.Killed != nil {
		fields = append(fields, zap.Int("killed", *alert.Killed))
	}
	if alert.LocationName != "" {
		fields = append(fields, zap.String("location", alert.LocationName),
			zap.String("country", alert.Country))
	}
	s.logger.Warn("conflict alert", fields...)
	return nil
}

// webhookRetries is the number of re-attempts after a failed delivery.
const webhookRetries = 2

// WebhookSink POSTs each alert as JSON to a configured endpoint,
// retrying failed deliveries.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= webhookRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}
		if lastErr = s.post(ctx, payload); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (s *WebhookSink) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

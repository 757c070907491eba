package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertNotFoundRate   AlertType = "not_found_rate"
)

// Minimum sample sizes before a rate is worth alerting on.
const (
	minFinishedRuns = 5
	minDecidedRows  = 50
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a run Summary against configured thresholds and
// sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the summary against thresholds and returns any
// alerts. A high not-found rate across many rows alerts even when
// every run completes: it is the signal for degraded search backends
// or a marketplace missing from the blocklist.
func (a *Alerter) Evaluate(sum *Summary) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := sum.Completed + sum.Failed
	if a.cfg.FailureRateThreshold > 0 && finished >= minFinishedRuns {
		failRate := float64(sum.Failed) / float64(finished)
		if failRate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertRunFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %d runs)",
					failRate*100, a.cfg.FailureRateThreshold*100,
					sum.Failed, finished, sum.TotalRuns,
				),
				Details: map[string]any{
					"failure_rate": failRate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       sum.Failed,
					"finished":     finished,
				},
				Timestamp: now,
			})
		}
	}

	decided := sum.Found + sum.NotFound
	if a.cfg.NotFoundRateThreshold > 0 && decided >= minDecidedRows {
		missRate := float64(sum.NotFound) / float64(decided)
		if missRate > a.cfg.NotFoundRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertNotFoundRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Not-found rate %.1f%% exceeds threshold %.1f%% (%d of %d arbitrated rows in last %d runs)",
					missRate*100, a.cfg.NotFoundRateThreshold*100,
					sum.NotFound, decided, sum.TotalRuns,
				),
				Details: map[string]any{
					"not_found_rate": missRate,
					"threshold":      a.cfg.NotFoundRateThreshold,
					"not_found":      sum.NotFound,
					"decided":        decided,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

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

	"github.com/draftiq/scoutsync/internal/config"
	"github.com/draftiq/scoutsync/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertExecutionFailed      AlertType = "execution_failed"
	AlertExecutionFailureRate AlertType = "execution_failure_rate"
	AlertQuarantineGrowth     AlertType = "quarantine_growth"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
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

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.ExecutionsSuccess + snap.ExecutionsPartial + snap.ExecutionsFailed
	if finished >= 5 && snap.FailureRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertExecutionFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Pipeline failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %d runs)",
				snap.FailureRate*100, a.cfg.FailureRateThreshold*100,
				snap.ExecutionsFailed, finished, snap.LookbackLimit,
			),
			Details: map[string]any{
				"failure_rate": snap.FailureRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.ExecutionsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	total := snap.EntitiesActive + snap.EntitiesQuarantined
	if total > 0 && snap.EntitiesQuarantined*4 > total {
		alerts = append(alerts, Alert{
			Type:     AlertQuarantineGrowth,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d of %d entities quarantined with %d open critical violations",
				snap.EntitiesQuarantined, total, snap.OpenCritical,
			),
			Details: map[string]any{
				"quarantined":   snap.EntitiesQuarantined,
				"total":         total,
				"open_critical": snap.OpenCritical,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Notify is the pipeline completion callback. Failed runs produce an
// immediate alert; success and partial outcomes are only logged.
func (a *Alerter) Notify(exec *model.PipelineExecution, classification string) {
	if classification != "failure" {
		zap.L().Info("monitoring: execution finished",
			zap.String("execution_id", exec.ID),
			zap.String("classification", classification),
		)
		return
	}

	failedStage := ""
	if fs := exec.FailedStage(); fs != nil {
		failedStage = fs.Stage
	}
	alert := Alert{
		Type:     AlertExecutionFailed,
		Severity: "high",
		Message:  fmt.Sprintf("Pipeline execution %s failed at stage %q", exec.ID, failedStage),
		Details: map[string]any{
			"execution_id": exec.ID,
			"failed_stage": failedStage,
			"triggered_by": exec.TriggeredBy,
		},
		Timestamp: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.SendAlerts(ctx, []Alert{alert})
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

package alertsmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hongbao-labs/packetd/internal/core/ports"
)

const (
	serviceName = "packetd"
	severity    = "info"

	maxRetries = 5
)

type Alert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
}

type service struct {
	baseUrl    string
	httpClient *http.Client
}

func NewService(alertManagerURL string) ports.Alerts {
	return &service{
		baseUrl: alertManagerURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *service) Publish(ctx context.Context, topic ports.Topic, message any) error {
	labels := map[string]string{
		"alertname": string(topic),
		"service":   serviceName,
		"severity":  severity,
	}

	desc := ""
	annotations := map[string]string{}
	switch topic {
	case ports.PacketCreatedAlertTopic:
		annotations["firing_title"] = "🧧 Packet Created"
		m, ok := message.(ports.PacketCreatedAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatPacketCreatedAlert(m)
		labels["packet_id"] = m.Id
	case ports.PacketClaimedAlertTopic:
		annotations["firing_title"] = "💰 Packet Claimed"
		m, ok := message.(ports.PacketClaimedAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatPacketClaimedAlert(m)
		labels["packet_id"] = m.Id
	case ports.PacketExpiredAlertTopic:
		annotations["firing_title"] = "⏰ Packet Expired"
		m, ok := message.(ports.PacketExpiredAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatPacketExpiredAlert(m)
		labels["packet_id"] = m.Id
	default:
		annotations["firing_title"] = fmt.Sprintf("🔔 %s", topic)
		desc = formatGenericAlert(map[string]any{"event": message})
	}

	annotations["description"] = desc
	alert := Alert{
		Labels:      labels,
		Annotations: annotations,
		StartsAt:    time.Now(),
	}

	if err := s.sendAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to send alert to AlertManager: %w", err)
	}

	return nil
}

func (s *service) sendAlert(ctx context.Context, alerts Alert) error {
	payload, err := json.Marshal([]Alert{alerts})
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	baseDelay := 100 * time.Millisecond

	for attempt := range maxRetries {
		req, err := http.NewRequestWithContext(ctx, "POST", s.baseUrl, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			// Network error - retry with backoff
			if attempt < maxRetries-1 {
				// exponential: 100ms, 200ms, 400ms, 800ms, 1600ms
				delay := baseDelay * time.Duration(1<<uint(attempt))

				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return fmt.Errorf("failed to send alert after %d attempts: %w", maxRetries, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			return nil
		}

		_ = resp.Body.Close()

		// Retry on 5xx (server errors), but not on 4xx (client errors)
		if resp.StatusCode >= 500 {
			if attempt < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<uint(attempt))

				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		// 4xx error or final 5xx error
		return fmt.Errorf(
			"failed to send alert to AlertManager with status %d after %d attempts",
			resp.StatusCode, attempt+1,
		)
	}

	return fmt.Errorf("failed to send alert after %d attempts", maxRetries)
}

func formatPacketCreatedAlert(data ports.PacketCreatedAlert) string {
	lines := make([]string, 0)
	lines = append(lines, fmt.Sprintf("*ID:* `%s`", data.Id))
	lines = append(lines, fmt.Sprintf("• Creator: %s", data.Creator))
	lines = append(lines, fmt.Sprintf("• Escrowed: %s", formatAmount(data.Amount, data.Asset)))
	lines = append(lines, fmt.Sprintf("• Shares: %d", data.Shares))
	return strings.Join(lines, "\n")
}

func formatPacketClaimedAlert(data ports.PacketClaimedAlert) string {
	lines := make([]string, 0)
	lines = append(lines, fmt.Sprintf("*ID:* `%s`", data.Id))
	lines = append(lines, fmt.Sprintf("• Claimant: %s", data.Claimant))
	lines = append(lines, fmt.Sprintf("• Amount: %d", data.Amount))
	return strings.Join(lines, "\n")
}

func formatPacketExpiredAlert(data ports.PacketExpiredAlert) string {
	lines := make([]string, 0)
	lines = append(lines, fmt.Sprintf("*ID:* `%s`", data.Id))
	lines = append(lines, fmt.Sprintf("• Creator: %s", data.Creator))
	lines = append(lines, fmt.Sprintf("• Unclaimed balance: %d", data.Balance))
	return strings.Join(lines, "\n")
}

func formatGenericAlert(data map[string]any) string {
	lines := make([]string, 0)
	for key, value := range data {
		lines = append(lines, fmt.Sprintf("• %s: %v", key, value))
	}
	return strings.Join(lines, "\n")
}

func formatAmount(amount uint64, asset string) string {
	if asset == "" {
		return fmt.Sprintf("%d", amount)
	}
	return fmt.Sprintf("%d %s", amount, asset)
}

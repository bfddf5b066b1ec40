package digest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/leads"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/resilience"
)

// Message is the payload posted to the digest webhook.
type Message struct {
	Text  string `json:"text"`
	Stats *Stats `json:"stats"`
}

// Notifier delivers digests via webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	retry      resilience.Policy
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithRetry overrides the retry policy for webhook posts.
func WithRetry(p resilience.Policy) NotifierOption {
	return func(n *Notifier) { n.retry = p }
}

// NewNotifier creates a Notifier posting to webhookURL.
func NewNotifier(webhookURL string, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		retry:      resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Send posts the stats to the webhook. It is a no-op when no URL is
// configured.
func (n *Notifier) Send(ctx context.Context, stats *Stats) error {
	if n.webhookURL == "" {
		zap.L().Debug("digest: no webhook configured, skipping send")
		return nil
	}

	payload, err := json.Marshal(Message{Text: Summary(stats), Stats: stats})
	if err != nil {
		return eris.Wrap(err, "digest: marshal message")
	}

	err = resilience.Do(ctx, n.retry, "digest webhook", func(ctx context.Context) error {
		return n.post(ctx, payload)
	})
	if err != nil {
		return err
	}

	zap.L().Info("digest: sent",
		zap.Int("total_assessments", stats.TotalAssessments),
		zap.Float64("average_score", stats.AverageScore),
	)
	return nil
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "digest: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "digest: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return resilience.StatusError("digest: webhook", resp.StatusCode)
	}
	return nil
}

// Summary renders the stats as a short human-readable message.
func Summary(stats *Stats) string {
	var b strings.Builder
	if stats.PeriodStart.IsZero() {
		fmt.Fprintf(&b, "Compliance digest to %s", stats.PeriodEnd.Format(time.DateOnly))
	} else {
		fmt.Fprintf(&b, "Compliance digest %s to %s",
			stats.PeriodStart.Format(time.DateOnly), stats.PeriodEnd.Format(time.DateOnly))
	}
	fmt.Fprintf(&b, ": %d assessments, average score %.1f%%.", stats.TotalAssessments, stats.AverageScore)

	if len(stats.TopStates) > 0 {
		parts := make([]string, len(stats.TopStates))
		for i, s := range stats.TopStates {
			parts[i] = fmt.Sprintf("%s (%d)", s.State, s.Count)
		}
		fmt.Fprintf(&b, " Top states: %s.", strings.Join(parts, ", "))
	}

	if len(stats.TierCounts) > 0 {
		tiers := make([]model.RiskTier, 0, len(stats.TierCounts))
		for t := range stats.TierCounts {
			tiers = append(tiers, t)
		}
		sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
		parts := make([]string, len(tiers))
		for i, t := range tiers {
			parts[i] = fmt.Sprintf("%s %d", leads.Rating(t), stats.TierCounts[t])
		}
		fmt.Fprintf(&b, " Ratings: %s.", strings.Join(parts, ", "))
	}
	return b.String()
}

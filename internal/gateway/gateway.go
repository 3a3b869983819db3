// Package gateway defines the outbound surface toward the chat transport: how
// the core hands finished (or failed) conversions back to the requesting user
// and how it escalates reports to the moderation channel.
//
// The transport itself — message parsing, button rendering, chat delivery —
// lives outside this repository. This package only speaks two small webhook
// contracts; when no webhook is configured, a noop implementation keeps the
// core fully functional (results are still recorded, reports are dropped).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/slowjam/go-vinyl-backend/internal/callback"
)

const userAgent = "go-vinyl-backend/0.1"

// Result is the outcome of one queued conversion, delivered to its requester.
// Exactly one of DerivedRef or Failure is set.
type Result struct {
	// RequestID correlates the delivery with the original submission.
	RequestID string `json:"request_id"`
	// OwnerID is the requesting user.
	OwnerID string `json:"owner_id"`
	// DerivedRef references the converted output on success.
	DerivedRef string `json:"derived_ref,omitempty"`
	// Control is the share control rendered for the fresh record.
	Control *callback.Control `json:"control,omitempty"`
	// Failure is a typed failure reason for user display
	// ("transform_failed", "file_too_big").
	Failure string `json:"failure,omitempty"`
}

// Report is a moderation escalation for one match.
type Report struct {
	// MatchID identifies the reported record.
	MatchID int64 `json:"match_id"`
	// DerivedRef lets moderators inspect the reported output.
	DerivedRef string `json:"derived_ref"`
	// ReporterMention is a transport-renderable handle of the reporter.
	ReporterMention string `json:"reporter_mention"`
}

// Notifier delivers conversion results to users.
type Notifier interface {
	DeliverResult(ctx context.Context, res Result) error
}

// ModerationNotifier escalates reports to the moderation channel.
type ModerationNotifier interface {
	NotifyModeration(ctx context.Context, rep Report) error
}

// Webhook posts results and reports as JSON to configured endpoints. Either
// URL may be empty, which turns that direction into a logged noop.
type Webhook struct {
	// ResultURL receives Result payloads.
	ResultURL string
	// ModerationURL receives Report payloads.
	ModerationURL string

	client *http.Client
	log    zerolog.Logger
}

// NewWebhook builds a webhook gateway with the given endpoints and request
// timeout (10s when non-positive).
func NewWebhook(resultURL, moderationURL string, timeout time.Duration, log zerolog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		ResultURL:     resultURL,
		ModerationURL: moderationURL,
		client:        &http.Client{Timeout: timeout},
		log:           log.With().Str("component", "gateway").Logger(),
	}
}

// DeliverResult posts the result to the result webhook. With no endpoint
// configured, the result is logged and considered delivered; the record
// remains available through the match endpoints either way.
func (w *Webhook) DeliverResult(ctx context.Context, res Result) error {
	if w.ResultURL == "" {
		w.log.Info().
			Str("request_id", res.RequestID).
			Str("owner_id", res.OwnerID).
			Str("failure", res.Failure).
			Msg("result delivery skipped (no webhook configured)")
		return nil
	}
	if err := w.post(ctx, w.ResultURL, res); err != nil {
		w.log.Error().Str("request_id", res.RequestID).Err(err).Msg("result delivery failed")
		return err
	}
	return nil
}

// NotifyModeration posts the report to the moderation webhook. Failures are
// returned so the report flow can surface a soft failure; the report is
// dropped, never retried.
func (w *Webhook) NotifyModeration(ctx context.Context, rep Report) error {
	if w.ModerationURL == "" {
		w.log.Warn().
			Int64("match_id", rep.MatchID).
			Msg("report dropped (no moderation webhook configured)")
		return fmt.Errorf("moderation webhook not configured")
	}
	if err := w.post(ctx, w.ModerationURL, rep); err != nil {
		w.log.Error().Int64("match_id", rep.MatchID).Err(err).Msg("moderation delivery failed")
		return err
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

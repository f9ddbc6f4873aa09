package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"mod-catalog/apperr"
	"mod-catalog/db"
)

const defaultTimeout = 5 * time.Second

// GameLookup loads a game together with its webhooks.
type GameLookup interface {
	GetGame(ctx context.Context, name string) (*db.Game, error)
}

// WebhookSender posts events to the webhooks registered on the event's game.
type WebhookSender struct {
	Games      GameLookup
	UserAgent  string
	HTTPClient *http.Client
}

func NewWebhookSender(games GameLookup, userAgent string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebhookSender{
		Games:     games,
		UserAgent: userAgent,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WebhookPayload is the JSON body posted to a webhook. Content carries the
// human summary so chat services can render it directly.
type WebhookPayload struct {
	Content   string    `json:"content"`
	Event     EventKind `json:"event"`
	Game      string    `json:"game"`
	ProjectID uint      `json:"projectId,omitempty"`
	VersionID uint      `json:"versionId,omitempty"`
	EditID    uint      `json:"editId,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func payloadFor(e Event) WebhookPayload {
	p := WebhookPayload{
		Content:   Describe(e),
		Event:     e.Kind,
		Game:      e.Game(),
		Reason:    e.Reason,
		Timestamp: e.At,
	}
	if e.Project != nil {
		p.ProjectID = e.Project.ID
	}
	if e.Version != nil {
		p.VersionID = e.Version.ID
	}
	if e.Edit != nil {
		p.EditID = e.Edit.ID
	}
	if e.Actor != nil {
		p.Actor = e.Actor.Username
	}
	return p
}

// Wants reports whether a webhook subscribed to kind. No tags means every kind.
func Wants(hook db.GameWebhook, kind EventKind) bool {
	return len(hook.Tags) == 0 || slices.Contains(hook.Tags, string(kind))
}

func (s *WebhookSender) Send(ctx context.Context, e Event) error {
	if e.Game() == "" {
		return nil
	}
	game, err := s.Games.GetGame(ctx, e.Game())
	if err != nil {
		return fmt.Errorf("failed to load webhooks for game '%s': %w", e.Game(), err)
	}

	body, err := json.Marshal(payloadFor(e))
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	var errs []error
	for _, hook := range game.Webhooks {
		if !Wants(hook, e.Kind) {
			continue
		}
		if err := s.post(ctx, hook.URL, body); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperr.Wrap(errors.Join(errs...), apperr.KindNotification, fmt.Sprintf("%d of %d webhook(s) failed", len(errs), len(game.Webhooks)))
	}
	return nil
}

func (s *WebhookSender) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// Package notify delivers reminders to the owner's browsers with Web Push.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"dietcoach/internal/clock"
	"dietcoach/internal/logger"
	"dietcoach/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

var (
	ErrNotConfigured   = errors.New("push notifications not configured")
	ErrNoSubscriptions = errors.New("no push subscriptions found")
)

// Payload is the JSON document the service worker receives.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

type Options struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
	HTTPClient *http.Client // nil uses the library default
	Clock      clock.Clock  // nil uses the host clock
}

// WebPush sends to every stored subscription and prunes the ones the push
// service reports as gone.
type WebPush struct {
	db   *sql.DB
	opts Options
}

func NewWebPush(db *sql.DB, opts Options) *WebPush {
	if opts.TTL <= 0 {
		opts.TTL = 30
	}
	if opts.Clock == nil {
		opts.Clock = &clock.System{}
	}
	return &WebPush{db: db, opts: opts}
}

func (w *WebPush) Configured() bool {
	return w.opts.PublicKey != "" && w.opts.PrivateKey != "" && w.opts.Subject != ""
}

func (w *WebPush) PublicKey() string {
	return w.opts.PublicKey
}

func (w *WebPush) vapid() *webpush.Options {
	o := &webpush.Options{
		Subscriber:      w.opts.Subject,
		VAPIDPublicKey:  w.opts.PublicKey,
		VAPIDPrivateKey: w.opts.PrivateKey,
		TTL:             w.opts.TTL,
	}
	if w.opts.HTTPClient != nil {
		o.HTTPClient = w.opts.HTTPClient
	}
	return o
}

// Notify sends a reminder. Without VAPID keys it does nothing.
func (w *WebPush) Notify(ctx context.Context, title, body string) error {
	if !w.Configured() {
		logger.Debug("web push not configured, skipping notification")
		return nil
	}
	_, err := w.Send(ctx, Payload{
		Title: title,
		Body:  body,
		Tag:   w.Tag("dietcoach"),
	})
	if errors.Is(err, ErrNoSubscriptions) {
		return nil
	}
	return err
}

// Tag makes a notification tag unique to the current second, so a new
// notification does not replace the previous one on the device.
func (w *WebPush) Tag(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, w.opts.Clock.Now().Unix())
}

// Send delivers payload to every subscription and returns how many accepted it.
func (w *WebPush) Send(ctx context.Context, payload Payload) (int, error) {
	if !w.Configured() {
		return 0, ErrNotConfigured
	}

	subs, err := w.Subscriptions(ctx)
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		return 0, ErrNoSubscriptions
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	options := w.vapid()
	successCount, failCount := 0, 0

	for _, sub := range subs {
		subscription := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := webpush.SendNotificationWithContext(ctx, payloadJSON, subscription, options)
		if err != nil {
			logger.Warn("failed to send push", "endpoint", shortEndpoint(sub.Endpoint), "error", err)
			failCount++
			if resp != nil {
				w.pruneIfGone(ctx, sub.Endpoint, resp.StatusCode)
				resp.Body.Close()
			}
			continue
		}

		status := resp.StatusCode
		if status >= 400 {
			body, _ := io.ReadAll(resp.Body)
			logger.Warn("push service error", "status", status, "body", string(body))
		}
		resp.Body.Close()

		if status >= 400 {
			w.pruneIfGone(ctx, sub.Endpoint, status)
			failCount++
			continue
		}
		successCount++
	}

	logger.Info("push notification summary", "subscriptions", len(subs), "success", successCount, "failed", failCount)

	if failCount > 0 && successCount == 0 {
		return 0, fmt.Errorf("failed to send any push notifications (attempted %d)", failCount)
	}
	return successCount, nil
}

// pruneIfGone drops subscriptions the push service no longer accepts: 404 and
// 410 mean expired, 403 means they were made with different VAPID keys.
func (w *WebPush) pruneIfGone(ctx context.Context, endpoint string, status int) {
	switch status {
	case http.StatusNotFound, http.StatusGone, http.StatusForbidden:
	default:
		return
	}
	if err := w.Unsubscribe(ctx, endpoint); err != nil {
		logger.Error("failed to remove stale subscription", "error", err)
		return
	}
	logger.Info("removed stale subscription", "status", status, "endpoint", shortEndpoint(endpoint))
}

func (w *WebPush) Subscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	rows, err := w.db.QueryContext(ctx, "SELECT id, endpoint, p256dh, auth FROM push_subscriptions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.ID, &s.Endpoint, &s.P256dh, &s.Auth); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Subscribe stores sub, replacing the keys of an existing endpoint.
func (w *WebPush) Subscribe(ctx context.Context, sub models.PushSubscription) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (endpoint, p256dh, auth)
		VALUES (?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
		p256dh = excluded.p256dh,
		auth = excluded.auth`,
		sub.Endpoint, sub.P256dh, sub.Auth,
	)
	return err
}

func (w *WebPush) Unsubscribe(ctx context.Context, endpoint string) error {
	_, err := w.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	return err
}

func shortEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50] + "..."
	}
	return endpoint
}

// Package notify delivers aurora alerts to subscribers. The watcher only
// knows the Notifier contract; the concrete implementation here posts to a
// Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Image is an attachment for an alert message.
type Image struct {
	Name string // filename shown to subscribers, e.g. "muonio.jpg"
	Data []byte
}

// Notifier posts an alert with optional image attachments.
type Notifier interface {
	Notify(ctx context.Context, text string, images []Image) error
}

// Webhook posts alerts to a Discord-compatible webhook URL using
// multipart attachments.
type Webhook struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewWebhook returns a webhook notifier. The URL is assumed validated by
// config.
func NewWebhook(url string, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (w *Webhook) Notify(ctx context.Context, text string, images []Image) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	payload := map[string]string{"content": text}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}
	if err := mw.WriteField("payload_json", string(payloadJSON)); err != nil {
		return fmt.Errorf("writing webhook payload: %w", err)
	}

	for i, img := range images {
		part, err := mw.CreateFormFile(fmt.Sprintf("files[%d]", i), img.Name)
		if err != nil {
			return fmt.Errorf("attaching %s: %w", img.Name, err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return fmt.Errorf("attaching %s: %w", img.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalizing webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, detail)
	}

	w.logger.Info("alert delivered", "attachments", len(images))
	return nil
}

// LogNotifier writes alerts to the log only. Used when no webhook is
// configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) Notify(_ context.Context, text string, images []Image) error {
	l.Logger.Info("alert (no webhook configured)", "text", text, "attachments", len(images))
	return nil
}

package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

// Notifier posts run reports to a chat channel as a form with author and content.
type Notifier struct {
	httpClient *http.Client
	url        string
	author     string
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(baseURL, channel, author string, timeout time.Duration) *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:    fmt.Sprintf("%s/%s/messages", strings.TrimSuffix(baseURL, "/"), url.PathEscape(channel)),
		author: author,
	}
}

func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	author := msg.Author
	if author == "" {
		author = n.author
	}
	form := url.Values{
		"author":  {author},
		"content": {msg.Content},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.WithFields(log.Fields{
		"url":    n.url,
		"author": author,
	}).Debug("sending notification")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", domain.ErrNotificationRejected, resp.StatusCode)
	}
	return nil
}

// LogNotifier only writes the report to the log.
type LogNotifier struct{}

var _ ports.Notifier = LogNotifier{}

func (LogNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	log.WithField("author", msg.Author).Info(msg.Content)
	return nil
}

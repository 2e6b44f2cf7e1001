package enquiry

import (
	"context"
	"errors"
	"strings"

	qstashx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/qstash"
)

// QueueNotifier publishes enquiry notifications through QStash so staff
// delivery survives process restarts and slow downstream endpoints.
type QueueNotifier struct {
	client         *qstashx.Client
	destinationURL string
}

func NewQueueNotifier(client *qstashx.Client, destinationURL string) (*QueueNotifier, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	destinationURL = strings.TrimSpace(destinationURL)
	if destinationURL == "" {
		return nil, errors.New("destination url is required")
	}
	return &QueueNotifier{client: client, destinationURL: destinationURL}, nil
}

var _ Notifier = (*QueueNotifier)(nil)

func (q *QueueNotifier) NotifyEnquiryCreated(ctx context.Context, n Notification) error {
	return q.client.PublishJSON(ctx, q.destinationURL, n)
}

package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classvault/apiserver/internal/mq"
)

// MailMessage is the queued representation of one outbound OTP email.
type MailMessage struct {
	To       string    `json:"to"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Dispatcher hands an OTP off to the mail transport. A failed dispatch must
// surface as an error so the caller can discard the stored code: the user
// must never be left believing a code was sent when it was not.
type Dispatcher interface {
	DispatchOTP(ctx context.Context, email, code string) error
}

// QueueDispatcher publishes OTP mail onto the message queue; the worker
// command drains the queue and performs the actual SMTP delivery.
type QueueDispatcher struct {
	queue   *mq.MQ
	channel string
}

func NewQueueDispatcher(queue *mq.MQ, channel string) *QueueDispatcher {
	return &QueueDispatcher{queue: queue, channel: channel}
}

func (d *QueueDispatcher) DispatchOTP(ctx context.Context, email, code string) error {
	data, err := json.Marshal(MailMessage{
		To:       email,
		Code:     code,
		IssuedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	if _, err := d.queue.Publish(ctx, d.channel, data, map[string]string{"kind": "otp"}); err != nil {
		return fmt.Errorf("publish otp mail: %w", err)
	}
	return nil
}

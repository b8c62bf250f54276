package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"goongoom/services/qna"
)

// ErrSubscriptionGone signals that the push endpoint rejected the
// subscription permanently and it should be removed.
var ErrSubscriptionGone = errors.New("push subscription gone")

// PushSender delivers one payload to a Web Push subscription.
type PushSender interface {
	Send(ctx context.Context, sub qna.PushSubscription, payload []byte) error
}

// WebPushSender sends VAPID-signed Web Push notifications.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subject    string
}

// NewWebPushSender constructs a sender from the VAPID key pair. subject is
// the contact URI advertised to push services, usually a mailto: address.
func NewWebPushSender(publicKey, privateKey, subject string) (*WebPushSender, error) {
	if strings.TrimSpace(publicKey) == "" || strings.TrimSpace(privateKey) == "" {
		return nil, errors.New("vapid key pair is required")
	}
	if subject == "" {
		subject = "mailto:admin@goongoom.app"
	}
	return &WebPushSender{publicKey: publicKey, privateKey: privateKey, subject: subject}, nil
}

func (s *WebPushSender) Send(ctx context.Context, sub qna.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push endpoint returned %s", resp.Status)
	}
	return nil
}

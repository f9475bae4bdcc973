package push

import (
	"context"
	"encoding/json"
	"log"

	webpush "github.com/SherClockHolmes/webpush-go"

	"gapchat/internal/store"
)

// Notifier sends Web Push notifications to subscribed users.
type Notifier struct {
	store           *store.Store
	vapidPublicKey  string
	vapidPrivateKey string
}

// NewNotifier creates a push Notifier. Returns nil if VAPID keys are empty.
func NewNotifier(st *store.Store, vapidPublicKey, vapidPrivateKey string) *Notifier {
	if vapidPublicKey == "" || vapidPrivateKey == "" {
		return nil
	}
	return &Notifier{
		store:           st,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
	}
}

// VAPIDPublicKey returns the public VAPID key for the frontend.
func (n *Notifier) VAPIDPublicKey() string {
	return n.vapidPublicKey
}

// payload is the JSON structure sent inside the push notification.
type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// SendNewMessageNotification pushes a new-message notification to every
// active subscription of receiverID.
func (n *Notifier) SendNewMessageNotification(ctx context.Context, receiverID, senderUsername string) {
	if n == nil {
		return
	}

	subs, err := n.store.ActivePushSubscriptions(ctx, receiverID)
	if err != nil {
		log.Printf("push: failed to query subscriptions for user %s: %v", receiverID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	p := payload{
		Title: "پیام جدید",
		Body:  "پیام جدید از " + senderUsername,
		URL:   "/",
	}
	data, _ := json.Marshal(p)

	log.Printf("push: sending notification to %d subscription(s) for user %s", len(subs), receiverID)
	for _, sub := range subs {
		n.sendToSubscription(ctx, sub, data)
	}
}

func (n *Notifier) sendToSubscription(ctx context.Context, sub store.PushSubscription, data []byte) {
	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.KeyP256dh,
			Auth:   sub.KeyAuth,
		},
	}

	resp, err := webpush.SendNotification(data, s, &webpush.Options{
		VAPIDPublicKey:  n.vapidPublicKey,
		VAPIDPrivateKey: n.vapidPrivateKey,
		Subscriber:      "mailto:push@gapchat.local",
		TTL:             86400,
	})
	if err != nil {
		log.Printf("push: failed to send to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// 410 Gone or 404 means the subscription is expired, drop the row
	if resp.StatusCode == 410 || resp.StatusCode == 404 {
		if err := n.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("push: failed to remove expired subscription %s: %v", sub.Endpoint, err)
			return
		}
		log.Printf("push: removed expired subscription %s (status %d)", sub.Endpoint, resp.StatusCode)
	}
}

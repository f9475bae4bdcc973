// Package queue decouples push-notification delivery from the send path
// using asynq over Redis. When Redis is not configured the dispatcher is
// nil and notifications are delivered inline.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"gapchat/internal/push"
)

const TypeNewMessagePush = "push:new_message"

type NewMessagePushPayload struct {
	ReceiverID     string `json:"receiver_id"`
	SenderUsername string `json:"sender_username"`
}

// Dispatcher enqueues push delivery tasks.
type Dispatcher struct {
	client *asynq.Client
}

func NewDispatcher(redisURL string) (*Dispatcher, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &Dispatcher{client: asynq.NewClient(opt)}, nil
}

// EnqueueNewMessagePush schedules a push notification for receiverID.
func (d *Dispatcher) EnqueueNewMessagePush(ctx context.Context, receiverID, senderUsername string) error {
	if d == nil {
		return nil
	}

	data, err := json.Marshal(NewMessagePushPayload{
		ReceiverID:     receiverID,
		SenderUsername: senderUsername,
	})
	if err != nil {
		return fmt.Errorf("asynq: marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeNewMessagePush, data, asynq.MaxRetry(3))
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("asynq: enqueue: %w", err)
	}
	return nil
}

func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

// Worker consumes delivery tasks and hands them to the notifier.
type Worker struct {
	server   *asynq.Server
	notifier *push.Notifier
}

func NewWorker(redisURL string, notifier *push.Notifier) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}

	server := asynq.NewServer(opt, asynq.Config{Concurrency: 4})
	return &Worker{server: server, notifier: notifier}, nil
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNewMessagePush, w.handleNewMessagePush)

	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("asynq: start worker: %w", err)
	}
	return nil
}

func (w *Worker) handleNewMessagePush(ctx context.Context, task *asynq.Task) error {
	var p NewMessagePushPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		log.Printf("queue: dropping malformed %s task: %v", task.Type(), err)
		return nil
	}

	w.notifier.SendNewMessageNotification(ctx, p.ReceiverID, p.SenderUsername)
	return nil
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slope-monitor-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	AlertID  string           `json:"alert_id"`
	DeviceID string           `json:"device_id"`
	Level    model.AlertLevel `json:"level"`
}

// NewPayload describes an alert for a push notification.
func NewPayload(a model.Alert) Payload {
	return Payload{
		Title:    fmt.Sprintf("%s alert on %s", strings.ToUpper(string(a.Level)), a.DeviceID),
		Body:     fmt.Sprintf("%s (value %.2f, threshold %g)", a.Message, a.Value, a.Threshold),
		AlertID:  a.ID,
		DeviceID: a.DeviceID,
		Level:    a.Level,
	}
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan model.Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Alert, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.Printf("Worker %d processing alert %s", id, alert.ID)
			wp.sendNotificationsForAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert. It gives up when ctx is done and reports whether
// the alert was queued.
func (wp *WorkerPool) Dispatch(ctx context.Context, alert model.Alert) bool {
	select {
	case wp.jobs <- alert:
		return true
	case <-ctx.Done():
		return false
	}
}

// subscriptionsFor returns the subscriptions that want alerts of deviceID:
// those listing the device and those listing no device at all.
func (wp *WorkerPool) subscriptionsFor(ctx context.Context, deviceID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM push_subscription_devices psd WHERE psd.endpoint = push_subscriptions.endpoint)").
		Or("EXISTS (SELECT 1 FROM push_subscription_devices psd WHERE psd.endpoint = push_subscriptions.endpoint AND psd.device_id = ?)", deviceID).
		Find(&subscriptions).Error
	return subscriptions, err
}

func (wp *WorkerPool) sendNotificationsForAlert(ctx context.Context, alert model.Alert) {
	subscriptions, err := wp.subscriptionsFor(ctx, alert.DeviceID)
	if err != nil {
		log.Printf("Error fetching subscriptions for device %s: %v", alert.DeviceID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(NewPayload(alert))
	if err != nil {
		log.Printf("Error encoding notification for alert %s: %v", alert.ID, err)
		return
	}

	log.Printf("Sending %d notifications for alert %s", len(subscriptions), alert.ID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Select(clause.Associations).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

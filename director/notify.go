package director

import (
	"sync"
	"time"

	"github.com/shiftdirector/shiftdirector/types"
)

// NotificationKind tags what a notification is about.
type NotificationKind string

const (
	NotifyStatusChanged    NotificationKind = "status_changed"
	NotifyProgressUpdated  NotificationKind = "progress_updated"
	NotifyDeviceEnrolled   NotificationKind = "device_enrolled"
	NotifyReadinessChanged NotificationKind = "readiness_changed"
)

// Notification is delivered to every subscriber, at least once, in the
// order it was published.
type Notification struct {
	Kind      NotificationKind          `json:"kind"`
	Timestamp time.Time                 `json:"timestamp"`
	PlanID    string                    `json:"plan_id,omitempty"`
	Status    types.PlanStatus          `json:"status,omitempty"`
	DeviceID  string                    `json:"device_id,omitempty"`
	Result    *types.EnrollmentResult   `json:"result,omitempty"`
	Progress  *types.EnrollmentProgress `json:"progress,omitempty"`
	Message   string                    `json:"message,omitempty"`
}

// Subscriber receives notifications synchronously. Implementations must not
// block; slow consumers should hand off to their own goroutine.
type Subscriber interface {
	Notify(n Notification)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(n Notification)

func (f SubscriberFunc) Notify(n Notification) { f(n) }

// Notifier fans notifications out to a subscriber list. Replaces the event/
// delegate callbacks the UI used to hang off the engine.
type Notifier struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]Subscriber
}

func NewNotifier() *Notifier {
	return &Notifier{subscribers: map[int]Subscriber{}}
}

// Subscribe registers a subscriber and returns a function that removes it.
func (n *Notifier) Subscribe(s Subscriber) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subscribers[id] = s

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subscribers, id)
	}
}

// Publish delivers the notification to every current subscriber.
func (n *Notifier) Publish(notification Notification) {
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now()
	}

	n.mu.Lock()
	subscribers := make([]Subscriber, 0, len(n.subscribers))
	for _, s := range n.subscribers {
		subscribers = append(subscribers, s)
	}
	n.mu.Unlock()

	for _, s := range subscribers {
		s.Notify(notification)
	}
}

package engine

import "time"

// NotificationType drives how the client styles a notification.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
	NotifyCouple  NotificationType = "couple"
)

// Notification is a message pushed to the player.
type Notification struct {
	ID        int              `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
}

// EventRecord is an entry of the short "latest events" feed.
type EventRecord struct {
	Event string `json:"event"`
	Time  string `json:"time"` // HH:MM wall clock
}

// pushNotification appends n and keeps only the newest NotificationCap.
// The id is the log length before the push, so ids repeat once the cap is hit.
func pushNotification(log []Notification, title, message string, typ NotificationType, now time.Time) []Notification {
	log = append(log, Notification{
		ID:        len(log),
		Title:     title,
		Message:   message,
		Type:      typ,
		Timestamp: now,
	})
	if len(log) > NotificationCap {
		log = append([]Notification(nil), log[len(log)-NotificationCap:]...)
	}
	return log
}

func pushEvent(log []EventRecord, text string, now time.Time) []EventRecord {
	log = append(log, EventRecord{Event: text, Time: now.Format("15:04")})
	if len(log) > EventCap {
		log = append([]EventRecord(nil), log[len(log)-EventCap:]...)
	}
	return log
}

func lastNotifications(log []Notification, n int) []Notification {
	if len(log) > n {
		log = log[len(log)-n:]
	}
	return append([]Notification(nil), log...)
}

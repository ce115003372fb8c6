package model

import "time"

// Notification is an in-app message for the member.
type Notification struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title,omitempty"`
	Message   string     `json:"message"`
	Kind      string     `json:"notification_type,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// CountUnread returns the number of unread notifications.
func CountUnread(items []Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

package model

import "encoding/json"

// Notification is a server-originated event addressed to the logged-in user.
// It arrives either in the bulk fetch or as a notification:new push.
type Notification struct {
	// ID is assigned by the server and is stable across fetch and push.
	ID int64 `json:"id"`

	// UserID is the owner of this notification.
	UserID int64 `json:"userId"`

	// Type classifies the event. It is interpreted by the UI only.
	Type string `json:"type"`

	Title   string `json:"title"`
	Message string `json:"message"`

	// Metadata is an opaque payload passed through untouched.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// IsRead indicates whether the user has seen this notification.
	// A push without the field decodes as unread.
	IsRead bool `json:"isRead"`

	// CreatedAt and UpdatedAt are server timestamps kept as opaque strings.
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// UnreadCount returns the number of notifications with IsRead == false.
func UnreadCount(list []Notification) int {
	n := 0
	for _, item := range list {
		if !item.IsRead {
			n++
		}
	}
	return n
}

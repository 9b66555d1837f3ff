package models

import "time"

// Notification is a server-originated feed entry. The client never creates these; it only caches what the backend returns.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Pagination selects a page of a listing.
type Pagination struct {
	Page       int
	PageSize   int
	UnreadOnly bool
}

// NotificationPage is one page of the notification feed.
type NotificationPage struct {
	Items       []Notification `json:"items"`
	Total       int            `json:"total"`
	UnreadCount int            `json:"unread_count"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
}

// Feed is the store's view of the notification feed: a staleness generation plus the last fetched page.
type Feed struct {
	Requested uint64           // Reload requests issued so far
	Fetched   uint64           // Highest request generation covered by Page
	Page      NotificationPage // Last fetched page
	FetchedAt time.Time
}

// Stale reports whether a reload was requested after the cached page was fetched.
func (f Feed) Stale() bool {
	return f.Requested > f.Fetched
}

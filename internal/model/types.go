package model

import "time"

// Visibility controls who may open a thread.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Thread is a conversation owned by a user.
type Thread struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	CreatedAt  time.Time  `json:"createdAt"`
	Visibility Visibility `json:"visibility"`
	UserID     string     `json:"userId"`
	FolderID   *string    `json:"folderId,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	// TagIDs is the pre-joined thread/tag association, ordered by tag label then id.
	TagIDs []string `json:"tagIds,omitempty"`
}

// Folder groups threads. A thread belongs to at most one folder.
type Folder struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	UserID string `json:"userId"`
}

// Tag labels threads; a thread may carry many tags.
type Tag struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	UserID string `json:"userId"`
}

// ThreadTag is a row of the thread/tag association.
type ThreadTag struct {
	ThreadID string
	TagID    string
}

// FolderSnapshot is the folder data embedded in a sidebar row.
type FolderSnapshot struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagSnapshot is the tag data embedded in a sidebar row.
type TagSnapshot struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	UserID string `json:"userId"`
}

// SidebarThread is the view model for one sidebar row. It is never persisted
// server-side.
type SidebarThread struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	CreatedAt  time.Time       `json:"createdAt"`
	Visibility Visibility      `json:"visibility"`
	UserID     string          `json:"userId"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Folder     *FolderSnapshot `json:"folder"`
	Tags       []TagSnapshot   `json:"tags"`
}

// SidebarData is what the presentation layer renders and what gets cached.
type SidebarData struct {
	Threads []SidebarThread `json:"threads"`
	Folders []Folder        `json:"folders"`
	Tags    []Tag           `json:"tags"`
	HasMore bool            `json:"hasMore"`
}

// CachedSidebarData is SidebarData plus the moment it was captured.
type CachedSidebarData struct {
	SidebarData
	CapturedAt time.Time `json:"capturedAt"`
}

// PageParams selects a page of threads. At most one cursor may be set; both
// nil means the first page.
type PageParams struct {
	FolderID      *string `json:"folderId,omitempty"`
	Limit         int     `json:"limit"`
	StartingAfter *string `json:"startingAfter,omitempty"`
	EndingBefore  *string `json:"endingBefore,omitempty"`
}

// Page is one slice of the ordered thread list.
type Page struct {
	Threads []Thread `json:"threads"`
	HasMore bool     `json:"hasMore"`
}

// Before reports whether a sorts ahead of b in the sidebar ordering
// (CreatedAt desc, ID desc).
func Before(a, b Thread) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

package model

import "time"

// Request and response bodies shared by the HTTP API and its client.

type CreateThreadRequest struct {
	ID         string     `json:"id,omitempty"`
	Title      string     `json:"title"`
	Visibility Visibility `json:"visibility"`
	FolderID   *string    `json:"folderId,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

type MoveThreadRequest struct {
	// FolderID nil removes the thread from its folder.
	FolderID *string `json:"folderId"`
}

type FolderRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type TagRequest struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

type FolderList struct {
	Folders []Folder `json:"folders"`
}

type TagList struct {
	Tags []Tag `json:"tags"`
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

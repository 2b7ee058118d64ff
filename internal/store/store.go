package store

import (
	"context"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite, memstore).
type Store interface {
	Threads() Threads
	Folders() Folders
	Tags() Tags
}

// Threads owns thread rows and the thread/tag association. Every method is
// scoped to userID; rows of other users are invisible.
type Threads interface {
	Create(ctx context.Context, t *model.Thread) (*model.Thread, error)
	Get(ctx context.Context, userID, threadID string) (*model.Thread, error)
	// Page returns up to p.Limit threads in (CreatedAt desc, ID desc) order with
	// TagIDs filled. HasMore is exact. An unknown cursor is ErrValidation.
	Page(ctx context.Context, userID string, p model.PageParams) (*model.Page, error)
	// Move sets the thread's folder; nil removes it from any folder.
	Move(ctx context.Context, userID, threadID string, folderID *string) (*model.Thread, error)
	Delete(ctx context.Context, userID, threadID string) error
	AddTag(ctx context.Context, userID, threadID, tagID string) error
	RemoveTag(ctx context.Context, userID, threadID, tagID string) error
}

type Folders interface {
	Create(ctx context.Context, f *model.Folder) (*model.Folder, error)
	Rename(ctx context.Context, userID, folderID, name, color string) (*model.Folder, error)
	// Delete removes the folder; its threads are kept without a folder.
	Delete(ctx context.Context, userID, folderID string) error
	// List returns all folders of the user ordered by name, then id.
	List(ctx context.Context, userID string) ([]model.Folder, error)
}

type Tags interface {
	Create(ctx context.Context, t *model.Tag) (*model.Tag, error)
	Relabel(ctx context.Context, userID, tagID, label, color string) (*model.Tag, error)
	// Delete removes the tag and its thread associations.
	Delete(ctx context.Context, userID, tagID string) error
	// List returns all tags of the user ordered by label, then id.
	List(ctx context.Context, userID string) ([]model.Tag, error)
}

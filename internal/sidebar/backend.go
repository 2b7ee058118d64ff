package sidebar

import (
	"context"
	"time"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
)

// CursorPaginator fetches ordered pages of a user's threads. Implementations
// own ordering and HasMore; they reject invalid params with ErrValidation.
type CursorPaginator interface {
	FetchPage(ctx context.Context, userID string, p model.PageParams) (*model.Page, error)
}

// Catalog lists the folders and tags a user owns.
type Catalog interface {
	ListFolders(ctx context.Context, userID string) ([]model.Folder, error)
	ListTags(ctx context.Context, userID string) ([]model.Tag, error)
}

// Backend is everything the aggregator reads.
type Backend interface {
	CursorPaginator
	Catalog
}

// Mutator performs the server-side mutations that Actions wrap.
type Mutator interface {
	CreateThread(ctx context.Context, userID string, in model.CreateThreadRequest) (*model.Thread, error)
	DeleteThread(ctx context.Context, userID, threadID string) error
	MoveThread(ctx context.Context, userID, threadID string, folderID *string) (*model.Thread, error)
	AddThreadTag(ctx context.Context, userID, threadID, tagID string) error
	RemoveThreadTag(ctx context.Context, userID, threadID, tagID string) error
	CreateFolder(ctx context.Context, userID string, in model.FolderRequest) (*model.Folder, error)
	RenameFolder(ctx context.Context, userID, folderID string, in model.FolderRequest) (*model.Folder, error)
	DeleteFolder(ctx context.Context, userID, folderID string) error
	CreateTag(ctx context.Context, userID string, in model.TagRequest) (*model.Tag, error)
	RelabelTag(ctx context.Context, userID, tagID string, in model.TagRequest) (*model.Tag, error)
	DeleteTag(ctx context.Context, userID, tagID string) error
}

// StoreBackend serves Backend and Mutator straight from a store.Store,
// for in-process use without the HTTP hop.
type StoreBackend struct {
	Store store.Store
}

var (
	_ Backend = StoreBackend{}
	_ Mutator = StoreBackend{}
)

func (b StoreBackend) FetchPage(ctx context.Context, userID string, p model.PageParams) (*model.Page, error) {
	return b.Store.Threads().Page(ctx, userID, p)
}

func (b StoreBackend) ListFolders(ctx context.Context, userID string) ([]model.Folder, error) {
	return b.Store.Folders().List(ctx, userID)
}

func (b StoreBackend) ListTags(ctx context.Context, userID string) ([]model.Tag, error) {
	return b.Store.Tags().List(ctx, userID)
}

func (b StoreBackend) CreateThread(ctx context.Context, userID string, in model.CreateThreadRequest) (*model.Thread, error) {
	t := &model.Thread{ID: in.ID, Title: in.Title, Visibility: in.Visibility, UserID: userID, FolderID: in.FolderID}
	if in.CreatedAt != nil {
		t.CreatedAt = *in.CreatedAt
	} else {
		t.CreatedAt = time.Now()
	}
	return b.Store.Threads().Create(ctx, t)
}

func (b StoreBackend) DeleteThread(ctx context.Context, userID, threadID string) error {
	return b.Store.Threads().Delete(ctx, userID, threadID)
}

func (b StoreBackend) MoveThread(ctx context.Context, userID, threadID string, folderID *string) (*model.Thread, error) {
	return b.Store.Threads().Move(ctx, userID, threadID, folderID)
}

func (b StoreBackend) AddThreadTag(ctx context.Context, userID, threadID, tagID string) error {
	return b.Store.Threads().AddTag(ctx, userID, threadID, tagID)
}

func (b StoreBackend) RemoveThreadTag(ctx context.Context, userID, threadID, tagID string) error {
	return b.Store.Threads().RemoveTag(ctx, userID, threadID, tagID)
}

func (b StoreBackend) CreateFolder(ctx context.Context, userID string, in model.FolderRequest) (*model.Folder, error) {
	return b.Store.Folders().Create(ctx, &model.Folder{Name: in.Name, Color: in.Color, UserID: userID})
}

func (b StoreBackend) RenameFolder(ctx context.Context, userID, folderID string, in model.FolderRequest) (*model.Folder, error) {
	return b.Store.Folders().Rename(ctx, userID, folderID, in.Name, in.Color)
}

func (b StoreBackend) DeleteFolder(ctx context.Context, userID, folderID string) error {
	return b.Store.Folders().Delete(ctx, userID, folderID)
}

func (b StoreBackend) CreateTag(ctx context.Context, userID string, in model.TagRequest) (*model.Tag, error) {
	return b.Store.Tags().Create(ctx, &model.Tag{Label: in.Label, Color: in.Color, UserID: userID})
}

func (b StoreBackend) RelabelTag(ctx context.Context, userID, tagID string, in model.TagRequest) (*model.Tag, error) {
	return b.Store.Tags().Relabel(ctx, userID, tagID, in.Label, in.Color)
}

func (b StoreBackend) DeleteTag(ctx context.Context, userID, tagID string) error {
	return b.Store.Tags().Delete(ctx, userID, tagID)
}

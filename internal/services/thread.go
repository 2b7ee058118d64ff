package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
)

const maxTitleLen = 256

// PageLimits bounds the page size served to clients.
type PageLimits struct {
	Default int
	Max     int
}

type ThreadService struct {
	store  store.Store
	limits PageLimits
	now    func() time.Time
}

func NewThreadService(s store.Store, limits PageLimits) *ThreadService {
	if limits.Max <= 0 {
		limits.Max = 100
	}
	if limits.Default <= 0 || limits.Default > limits.Max {
		limits.Default = limits.Max
	}
	return &ThreadService{store: s, limits: limits, now: time.Now}
}

// Page serves one page of userID's threads. A missing limit takes the
// default; a larger one is cut to the maximum.
func (s *ThreadService) Page(ctx context.Context, userID string, p model.PageParams) (*model.Page, error) {
	if p.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must be a positive integer, got %d", model.ErrValidation, p.Limit)
	}
	p = p.Clamp(s.limits.Default, s.limits.Max)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.FolderID != nil {
		if err := s.ownsFolder(ctx, userID, *p.FolderID); err != nil {
			return nil, err
		}
	}
	return s.store.Threads().Page(ctx, userID, p)
}

func (s *ThreadService) ownsFolder(ctx context.Context, userID, folderID string) error {
	folders, err := s.store.Folders().List(ctx, userID)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if f.ID == folderID {
			return nil
		}
	}
	return fmt.Errorf("%w: folder %s", model.ErrNotFound, folderID)
}

func (s *ThreadService) Create(ctx context.Context, userID string, in model.CreateThreadRequest) (*model.Thread, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title longer than %d bytes", model.ErrValidation, maxTitleLen)
	}
	vis := in.Visibility
	if vis == "" {
		vis = model.VisibilityPrivate
	}
	if !vis.Valid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", model.ErrValidation, vis)
	}
	t := &model.Thread{ID: in.ID, Title: title, Visibility: vis, UserID: userID, FolderID: in.FolderID}
	if in.CreatedAt != nil {
		t.CreatedAt = *in.CreatedAt
	} else {
		t.CreatedAt = s.now()
	}
	return s.store.Threads().Create(ctx, t)
}

func (s *ThreadService) Get(ctx context.Context, userID, threadID string) (*model.Thread, error) {
	return s.store.Threads().Get(ctx, userID, threadID)
}

func (s *ThreadService) Delete(ctx context.Context, userID, threadID string) error {
	return s.store.Threads().Delete(ctx, userID, threadID)
}

// Move files the thread under folderID, or takes it out of any folder when nil.
func (s *ThreadService) Move(ctx context.Context, userID, threadID string, folderID *string) (*model.Thread, error) {
	if folderID != nil && *folderID == "" {
		return nil, fmt.Errorf("%w: folderId must not be empty", model.ErrValidation)
	}
	return s.store.Threads().Move(ctx, userID, threadID, folderID)
}

func (s *ThreadService) AddTag(ctx context.Context, userID, threadID, tagID string) error {
	return s.store.Threads().AddTag(ctx, userID, threadID, tagID)
}

func (s *ThreadService) RemoveTag(ctx context.Context, userID, threadID, tagID string) error {
	return s.store.Threads().RemoveTag(ctx, userID, threadID, tagID)
}

// Package memstore is an in-process store.Store. It backs tests and the
// single-process demo mode of the service.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
)

// Store keeps all rows in maps guarded by one mutex.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	threads    map[string]model.Thread
	folders    map[string]model.Folder
	tags       map[string]model.Tag
	threadTags map[string]map[string]struct{} // threadID -> tagIDs
}

// New returns an empty store. now may be nil.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:        now,
		threads:    make(map[string]model.Thread),
		folders:    make(map[string]model.Folder),
		tags:       make(map[string]model.Tag),
		threadTags: make(map[string]map[string]struct{}),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Threads() store.Threads { return threads{s} }
func (s *Store) Folders() store.Folders { return folders{s} }
func (s *Store) Tags() store.Tags       { return tags{s} }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(context.Context) error { return nil }

func (s *Store) stamp() time.Time { return s.now().UTC().Truncate(time.Microsecond) }

// --- Threads ---
type threads struct{ s *Store }

func (r threads) Create(_ context.Context, t *model.Thread) (*model.Thread, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *t
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if _, ok := s.threads[out.ID]; ok {
		return nil, fmt.Errorf("%w: thread %s exists", model.ErrConflict, out.ID)
	}
	if out.FolderID != nil {
		if f, ok := s.folders[*out.FolderID]; !ok || f.UserID != out.UserID {
			return nil, fmt.Errorf("%w: folder %s", model.ErrNotFound, *out.FolderID)
		}
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.stamp()
	}
	out.CreatedAt = out.CreatedAt.UTC().Truncate(time.Microsecond)
	out.UpdatedAt = out.CreatedAt
	out.TagIDs = nil
	s.threads[out.ID] = out
	return &out, nil
}

func (r threads) Get(_ context.Context, userID, threadID string) (*model.Thread, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("%w: thread %s", model.ErrNotFound, threadID)
	}
	t.TagIDs = s.tagIDsLocked(threadID)
	return &t, nil
}

func (r threads) Page(_ context.Context, userID string, p model.PageParams) (*model.Page, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cursor *model.Thread
	if id, ok := store.CursorID(p); ok {
		c, found := s.threads[id]
		if !found || c.UserID != userID {
			return nil, fmt.Errorf("%w: unknown cursor %s", model.ErrValidation, id)
		}
		cursor = &c
	}
	var mine []model.Thread
	for _, t := range s.threads {
		if t.UserID == userID {
			mine = append(mine, t)
		}
	}
	page := store.PageSlice(mine, cursor, p)
	for i := range page.Threads {
		page.Threads[i].TagIDs = s.tagIDsLocked(page.Threads[i].ID)
	}
	return page, nil
}

func (r threads) Move(_ context.Context, userID, threadID string, folderID *string) (*model.Thread, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("%w: thread %s", model.ErrNotFound, threadID)
	}
	if folderID != nil {
		if f, ok := s.folders[*folderID]; !ok || f.UserID != userID {
			return nil, fmt.Errorf("%w: folder %s", model.ErrNotFound, *folderID)
		}
		id := *folderID
		folderID = &id
	}
	t.FolderID = folderID
	t.UpdatedAt = s.stamp()
	s.threads[threadID] = t
	t.TagIDs = s.tagIDsLocked(threadID)
	return &t, nil
}

func (r threads) Delete(_ context.Context, userID, threadID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok || t.UserID != userID {
		return fmt.Errorf("%w: thread %s", model.ErrNotFound, threadID)
	}
	delete(s.threads, threadID)
	delete(s.threadTags, threadID)
	return nil
}

func (r threads) AddTag(_ context.Context, userID, threadID, tagID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[threadID]; !ok || t.UserID != userID {
		return fmt.Errorf("%w: thread %s", model.ErrNotFound, threadID)
	}
	if tg, ok := s.tags[tagID]; !ok || tg.UserID != userID {
		return fmt.Errorf("%w: tag %s", model.ErrNotFound, tagID)
	}
	if s.threadTags[threadID] == nil {
		s.threadTags[threadID] = make(map[string]struct{})
	}
	s.threadTags[threadID][tagID] = struct{}{}
	return nil
}

func (r threads) RemoveTag(_ context.Context, userID, threadID, tagID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[threadID]; !ok || t.UserID != userID {
		return fmt.Errorf("%w: thread %s", model.ErrNotFound, threadID)
	}
	delete(s.threadTags[threadID], tagID)
	return nil
}

// tagIDsLocked returns the thread's tag ids ordered by label, then id.
func (s *Store) tagIDsLocked(threadID string) []string {
	set := s.threadTags[threadID]
	if len(set) == 0 {
		return nil
	}
	ts := make([]model.Tag, 0, len(set))
	for id := range set {
		ts = append(ts, s.tags[id])
	}
	sortTags(ts)
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

func sortTags(ts []model.Tag) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Label != ts[j].Label {
			return ts[i].Label < ts[j].Label
		}
		return ts[i].ID < ts[j].ID
	})
}

// --- Folders ---
type folders struct{ s *Store }

func (r folders) Create(_ context.Context, f *model.Folder) (*model.Folder, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *f
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if _, ok := s.folders[out.ID]; ok {
		return nil, fmt.Errorf("%w: folder %s exists", model.ErrConflict, out.ID)
	}
	s.folders[out.ID] = out
	return &out, nil
}

func (r folders) Rename(_ context.Context, userID, folderID, name, color string) (*model.Folder, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[folderID]
	if !ok || f.UserID != userID {
		return nil, fmt.Errorf("%w: folder %s", model.ErrNotFound, folderID)
	}
	f.Name = name
	if color != "" {
		f.Color = color
	}
	s.folders[folderID] = f
	return &f, nil
}

func (r folders) Delete(_ context.Context, userID, folderID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[folderID]
	if !ok || f.UserID != userID {
		return fmt.Errorf("%w: folder %s", model.ErrNotFound, folderID)
	}
	delete(s.folders, folderID)
	for id, t := range s.threads {
		if t.FolderID != nil && *t.FolderID == folderID {
			t.FolderID = nil
			s.threads[id] = t
		}
	}
	return nil
}

func (r folders) List(_ context.Context, userID string) ([]model.Folder, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Folder{}
	for _, f := range s.folders {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- Tags ---
type tags struct{ s *Store }

func (r tags) Create(_ context.Context, t *model.Tag) (*model.Tag, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *t
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if _, ok := s.tags[out.ID]; ok {
		return nil, fmt.Errorf("%w: tag %s exists", model.ErrConflict, out.ID)
	}
	s.tags[out.ID] = out
	return &out, nil
}

func (r tags) Relabel(_ context.Context, userID, tagID, label, color string) (*model.Tag, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[tagID]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("%w: tag %s", model.ErrNotFound, tagID)
	}
	t.Label = label
	if color != "" {
		t.Color = color
	}
	s.tags[tagID] = t
	return &t, nil
}

func (r tags) Delete(_ context.Context, userID, tagID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[tagID]
	if !ok || t.UserID != userID {
		return fmt.Errorf("%w: tag %s", model.ErrNotFound, tagID)
	}
	delete(s.tags, tagID)
	for _, set := range s.threadTags {
		delete(set, tagID)
	}
	return nil
}

func (r tags) List(_ context.Context, userID string) ([]model.Tag, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Tag{}
	for _, t := range s.tags {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortTags(out)
	return out, nil
}

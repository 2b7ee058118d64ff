package sidebar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/events"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

type recordingUpdater struct {
	mu       sync.Mutex
	inserted []string
	removed  []string
	stale    int
}

func (r *recordingUpdater) InsertThread(t model.Thread) {
	r.mu.Lock()
	r.inserted = append(r.inserted, t.ID)
	r.mu.Unlock()
}

func (r *recordingUpdater) RemoveThread(id string) {
	r.mu.Lock()
	r.removed = append(r.removed, id)
	r.mu.Unlock()
}

func (r *recordingUpdater) MarkStale() {
	r.mu.Lock()
	r.stale++
	r.mu.Unlock()
}

func TestInvalidator_ScenarioC_CreateThreadClearsUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "u1", 2)
	f.seed(t, "u2", 1)
	_, err := f.agg.Load(ctx, "u1", model.PageParams{})
	require.NoError(t, err)
	_, err = f.agg.Load(ctx, "u2", model.PageParams{})
	require.NoError(t, err)

	created, err := f.actions.CreateThread(ctx, "u1", model.CreateThreadRequest{Title: "fresh", Visibility: model.VisibilityPrivate})
	require.NoError(t, err)

	state, err := f.agg.State(ctx, "u1", model.PageParams{})
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
	state, err = f.agg.State(ctx, "u2", model.PageParams{})
	require.NoError(t, err)
	assert.Equal(t, StateFresh, state, "other users keep their cache")

	res, err := f.agg.Load(ctx, "u1", model.PageParams{})
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, res.Source)
	require.NotEmpty(t, res.Data.Threads)
	assert.Equal(t, created.ID, res.Data.Threads[0].ID)
}

func TestInvalidator_EveryActionClearsAllFacets(t *testing.T) {
	type setup struct {
		threadID, folderID, tagID string
	}
	tests := []struct {
		name string
		do   func(ctx context.Context, a *Actions, s setup) error
	}{
		{"create thread", func(ctx context.Context, a *Actions, _ setup) error {
			_, err := a.CreateThread(ctx, "u1", model.CreateThreadRequest{Title: "x", Visibility: model.VisibilityPublic})
			return err
		}},
		{"delete thread", func(ctx context.Context, a *Actions, s setup) error {
			return a.DeleteThread(ctx, "u1", s.threadID)
		}},
		{"move thread", func(ctx context.Context, a *Actions, s setup) error {
			_, err := a.MoveThread(ctx, "u1", s.threadID, &s.folderID)
			return err
		}},
		{"tag thread", func(ctx context.Context, a *Actions, s setup) error {
			return a.TagThread(ctx, "u1", s.threadID, s.tagID)
		}},
		{"untag thread", func(ctx context.Context, a *Actions, s setup) error {
			return a.UntagThread(ctx, "u1", s.threadID, s.tagID)
		}},
		{"create folder", func(ctx context.Context, a *Actions, _ setup) error {
			_, err := a.CreateFolder(ctx, "u1", model.FolderRequest{Name: "new", Color: "#000"})
			return err
		}},
		{"rename folder", func(ctx context.Context, a *Actions, s setup) error {
			_, err := a.RenameFolder(ctx, "u1", s.folderID, model.FolderRequest{Name: "renamed"})
			return err
		}},
		{"delete folder", func(ctx context.Context, a *Actions, s setup) error {
			return a.DeleteFolder(ctx, "u1", s.folderID)
		}},
		{"create tag", func(ctx context.Context, a *Actions, _ setup) error {
			_, err := a.CreateTag(ctx, "u1", model.TagRequest{Label: "new", Color: "#000"})
			return err
		}},
		{"relabel tag", func(ctx context.Context, a *Actions, s setup) error {
			_, err := a.RelabelTag(ctx, "u1", s.tagID, model.TagRequest{Label: "relabeled"})
			return err
		}},
		{"delete tag", func(ctx context.Context, a *Actions, s setup) error {
			return a.DeleteTag(ctx, "u1", s.tagID)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			threads := f.seed(t, "u1", 3)
			f.seed(t, "u2", 1)
			folder, err := f.store.Folders().Create(ctx, &model.Folder{Name: "work", Color: "#fff", UserID: "u1"})
			require.NoError(t, err)
			tag, err := f.store.Tags().Create(ctx, &model.Tag{Label: "go", Color: "#fff", UserID: "u1"})
			require.NoError(t, err)
			require.NoError(t, f.store.Threads().AddTag(ctx, "u1", threads[0].ID, tag.ID))

			scoped := model.PageParams{Limit: 30, FolderID: &folder.ID}
			for _, p := range []model.PageParams{{}, scoped} {
				_, err := f.agg.Load(ctx, "u1", p)
				require.NoError(t, err)
			}
			_, err = f.agg.Load(ctx, "u2", model.PageParams{})
			require.NoError(t, err)
			sub, cancel := f.bus.Subscribe("u1")
			defer cancel()

			require.NoError(t, tt.do(ctx, f.actions, setup{threadID: threads[0].ID, folderID: folder.ID, tagID: tag.ID}))

			keys := []string{f.agg.KeyFor("u1", scoped)}
			for _, facet := range Facets {
				keys = append(keys, Key("u1", facet, ""))
			}
			for _, k := range keys {
				_, err := f.cache.GetStale(ctx, k)
				assert.ErrorIs(t, err, cachestore.ErrMiss, "key %s", k)
			}
			for _, facet := range Facets {
				_, err := f.cache.Get(ctx, Key("u2", facet, ""))
				assert.NoError(t, err, "u2 facet %s", facet)
			}

			select {
			case evt := <-sub:
				assert.Equal(t, events.EventInvalidated, evt.Kind)
			case <-time.After(time.Second):
				t.Fatal("no invalidated event")
			}

			res, err := f.agg.Load(ctx, "u1", model.PageParams{})
			require.NoError(t, err)
			assert.Equal(t, SourceNetwork, res.Source)
		})
	}
}

func TestInvalidator_FailedMutationLeavesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "u1", 1)
	_, err := f.agg.Load(ctx, "u1", model.PageParams{})
	require.NoError(t, err)

	err = f.actions.DeleteThread(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	state, err := f.agg.State(ctx, "u1", model.PageParams{})
	require.NoError(t, err)
	assert.Equal(t, StateFresh, state)
}

func TestInvalidator_UpdaterReceivesProvisionalChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := &recordingUpdater{}
	f.inv.SetUpdater(u)

	th := &model.Thread{ID: "t-new", UserID: "u1"}
	require.NoError(t, f.inv.Apply(ctx, Mutation{Kind: ThreadCreated, UserID: "u1", Thread: th}))
	require.NoError(t, f.inv.Apply(ctx, Mutation{Kind: ThreadDeleted, UserID: "u1", ThreadID: "t-old"}))
	require.NoError(t, f.inv.Apply(ctx, Mutation{Kind: TagRelabeled, UserID: "u1"}))
	require.NoError(t, f.inv.Apply(ctx, Mutation{Kind: ThreadCreated, UserID: "u1", Thread: &model.Thread{ID: "x", UserID: "u2"}}))

	assert.Equal(t, []string{"t-new"}, u.inserted)
	assert.Equal(t, []string{"t-old"}, u.removed)
	assert.Equal(t, 4, u.stale)

	f.inv.SetUpdater(nil)
	require.NoError(t, f.inv.Apply(ctx, Mutation{Kind: FolderDeleted, UserID: "u1"}))
	assert.Equal(t, 4, u.stale)
}

func TestInvalidator_RejectsBadMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name string
		m    Mutation
		want error
	}{
		{"no user", Mutation{Kind: FolderRenamed}, model.ErrUnauthorized},
		{"unknown kind", Mutation{Kind: "thread_archived", UserID: "u1"}, model.ErrValidation},
		{"created without thread", Mutation{Kind: ThreadCreated, UserID: "u1"}, model.ErrValidation},
		{"deleted without id", Mutation{Kind: ThreadDeleted, UserID: "u1"}, model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.inv.Apply(ctx, tt.m)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvalidator_StorageFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.shared.SetUnavailable(true)
	sub, cancel := f.bus.Subscribe("u1")
	defer cancel()

	require.NoError(t, f.inv.Invalidate(context.Background(), "u1"))
	evt := <-sub
	assert.Equal(t, events.EventInvalidated, evt.Kind)
}

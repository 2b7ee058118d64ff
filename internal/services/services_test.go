package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/memstore"
)

func newServices(t *testing.T) (*ThreadService, *FolderService, *TagService) {
	t.Helper()
	s := memstore.New(time.Now)
	return NewThreadService(s, PageLimits{Default: 2, Max: 3}), NewFolderService(s), NewTagService(s)
}

func TestThreadService_CreateValidates(t *testing.T) {
	threads, _, _ := newServices(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   model.CreateThreadRequest
	}{
		{"empty title", model.CreateThreadRequest{Title: "   "}},
		{"long title", model.CreateThreadRequest{Title: strings.Repeat("x", maxTitleLen+1)}},
		{"bad visibility", model.CreateThreadRequest{Title: "ok", Visibility: "friends"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := threads.Create(ctx, "u1", tt.in)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}

	th, err := threads.Create(ctx, "u1", model.CreateThreadRequest{Title: "  hello "})
	require.NoError(t, err)
	assert.Equal(t, "hello", th.Title)
	assert.Equal(t, model.VisibilityPrivate, th.Visibility)
	assert.Equal(t, "u1", th.UserID)
	assert.False(t, th.CreatedAt.IsZero())
}

func TestThreadService_PageLimits(t *testing.T) {
	threads, folders, _ := newServices(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		_, err := threads.Create(ctx, "u1", model.CreateThreadRequest{Title: "t", CreatedAt: &at})
		require.NoError(t, err)
	}

	page, err := threads.Page(ctx, "u1", model.PageParams{})
	require.NoError(t, err)
	assert.Len(t, page.Threads, 2)
	assert.True(t, page.HasMore)

	page, err = threads.Page(ctx, "u1", model.PageParams{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, page.Threads, 3)

	_, err = threads.Page(ctx, "u1", model.PageParams{Limit: -1})
	assert.ErrorIs(t, err, model.ErrValidation)

	missing := "nope"
	_, err = threads.Page(ctx, "u1", model.PageParams{FolderID: &missing})
	assert.ErrorIs(t, err, model.ErrNotFound)

	f, err := folders.Create(ctx, "u1", model.FolderRequest{Name: "work"})
	require.NoError(t, err)
	page, err = threads.Page(ctx, "u1", model.PageParams{FolderID: &f.ID})
	require.NoError(t, err)
	assert.Empty(t, page.Threads)
	_, err = threads.Page(ctx, "u2", model.PageParams{FolderID: &f.ID})
	assert.ErrorIs(t, err, model.ErrNotFound, "folders of other users are invisible")
}

func TestThreadService_Move(t *testing.T) {
	threads, folders, _ := newServices(t)
	ctx := context.Background()
	th, err := threads.Create(ctx, "u1", model.CreateThreadRequest{Title: "a"})
	require.NoError(t, err)
	f, err := folders.Create(ctx, "u1", model.FolderRequest{Name: "work", Color: "#abc"})
	require.NoError(t, err)

	empty := ""
	_, err = threads.Move(ctx, "u1", th.ID, &empty)
	assert.ErrorIs(t, err, model.ErrValidation)

	moved, err := threads.Move(ctx, "u1", th.ID, &f.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, f.ID, *moved.FolderID)

	moved, err = threads.Move(ctx, "u1", th.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, moved.FolderID)
}

func TestFolderAndTagServices(t *testing.T) {
	_, folders, tags := newServices(t)
	ctx := context.Background()

	_, err := folders.Create(ctx, "u1", model.FolderRequest{Name: ""})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = folders.Create(ctx, "u1", model.FolderRequest{Name: "x", Color: "red"})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = tags.Create(ctx, "u1", model.TagRequest{Label: strings.Repeat("l", maxNameLen+1)})
	assert.ErrorIs(t, err, model.ErrValidation)

	f, err := folders.Create(ctx, "u1", model.FolderRequest{Name: "b", Color: "#112233"})
	require.NoError(t, err)
	f, err = folders.Rename(ctx, "u1", f.ID, model.FolderRequest{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", f.Name)
	assert.Equal(t, "#112233", f.Color)
	list, err := folders.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, folders.Delete(ctx, "u1", f.ID))
	assert.ErrorIs(t, folders.Delete(ctx, "u1", f.ID), model.ErrNotFound)

	tg, err := tags.Create(ctx, "u1", model.TagRequest{Label: "go"})
	require.NoError(t, err)
	tg, err = tags.Relabel(ctx, "u1", tg.ID, model.TagRequest{Label: "golang", Color: "#0f0"})
	require.NoError(t, err)
	assert.Equal(t, "golang", tg.Label)
	assert.Equal(t, "#0f0", tg.Color)
	_, err = tags.Relabel(ctx, "u2", tg.ID, model.TagRequest{Label: "x"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	tl, err := tags.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tl, 1)
	require.NoError(t, tags.Delete(ctx, "u1", tg.ID))
}

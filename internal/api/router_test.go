package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/auth"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/backend/httpclient"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/services"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/memstore"
)

type fakeHealth struct {
	ok   bool
	down []string
}

func (f fakeHealth) IsHealthy() bool { return f.ok }
func (f fakeHealth) Down() []string  { return f.down }

func newTestServer(t *testing.T, h HealthStatus) (*httptest.Server, *memstore.Store) {
	t.Helper()
	st := memstore.New(time.Now)
	router := NewRouter(Deps{
		Store:      st,
		Authorizer: auth.NewStaticAuthorizer(map[string]string{"tok-alice": "alice", "tok-bob": "bob"}),
		Health:     h,
		Limits:     services.PageLimits{Default: 30, Max: 100},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func newClient(srv *httptest.Server) *httpclient.Client {
	return httpclient.New(srv.URL, httpclient.TokenMap(map[string]string{"alice": "tok-alice", "bob": "tok-bob", "eve": "tok-eve"}))
}

func TestAPI_PaginationOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := newClient(srv)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 1; i <= 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		th, err := c.CreateThread(ctx, "alice", model.CreateThreadRequest{Title: "t", CreatedAt: &at})
		require.NoError(t, err)
		ids = append(ids, th.ID)
	}

	page, err := c.FetchPage(ctx, "alice", model.PageParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Threads, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[4], page.Threads[0].ID)
	assert.Equal(t, ids[3], page.Threads[1].ID)

	after := page.Threads[1].ID
	page, err = c.FetchPage(ctx, "alice", model.PageParams{Limit: 5, StartingAfter: &after})
	require.NoError(t, err)
	assert.Len(t, page.Threads, 3)
	assert.False(t, page.HasMore)

	before := ids[1]
	page, err = c.FetchPage(ctx, "alice", model.PageParams{Limit: 2, EndingBefore: &before})
	require.NoError(t, err)
	require.Len(t, page.Threads, 2)
	assert.Equal(t, ids[3], page.Threads[0].ID)
	assert.Equal(t, ids[2], page.Threads[1].ID)
	assert.True(t, page.HasMore)

	missing := "nope"
	_, err = c.FetchPage(ctx, "alice", model.PageParams{Limit: 2, StartingAfter: &missing})
	assert.ErrorIs(t, err, model.ErrValidation)

	page, err = c.FetchPage(ctx, "bob", model.PageParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Threads, "users never see each other's threads")
}

func TestAPI_CatalogAndFolderScope(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := newClient(srv)
	ctx := context.Background()

	f, err := c.CreateFolder(ctx, "alice", model.FolderRequest{Name: "work", Color: "#123456"})
	require.NoError(t, err)
	tg, err := c.CreateTag(ctx, "alice", model.TagRequest{Label: "go", Color: "#00ff00"})
	require.NoError(t, err)
	th, err := c.CreateThread(ctx, "alice", model.CreateThreadRequest{Title: "filed"})
	require.NoError(t, err)
	_, err = c.CreateThread(ctx, "alice", model.CreateThreadRequest{Title: "loose"})
	require.NoError(t, err)

	moved, err := c.MoveThread(ctx, "alice", th.ID, &f.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	require.NoError(t, c.AddThreadTag(ctx, "alice", th.ID, tg.ID))

	page, err := c.FetchPage(ctx, "alice", model.PageParams{Limit: 10, FolderID: &f.ID})
	require.NoError(t, err)
	require.Len(t, page.Threads, 1)
	assert.Equal(t, th.ID, page.Threads[0].ID)
	assert.Equal(t, []string{tg.ID}, page.Threads[0].TagIDs)

	folders, err := c.ListFolders(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, folders, 1)
	tags, err := c.ListTags(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	_, err = c.FetchPage(ctx, "bob", model.PageParams{Limit: 10, FolderID: &f.ID})
	assert.ErrorIs(t, err, model.ErrValidation, "a foreign folder reads as an invalid request")

	_, err = c.RenameFolder(ctx, "alice", f.ID, model.FolderRequest{Name: "office"})
	require.NoError(t, err)
	_, err = c.RelabelTag(ctx, "alice", tg.ID, model.TagRequest{Label: "golang"})
	require.NoError(t, err)
	require.NoError(t, c.RemoveThreadTag(ctx, "alice", th.ID, tg.ID))
	require.NoError(t, c.DeleteTag(ctx, "alice", tg.ID))
	require.NoError(t, c.DeleteFolder(ctx, "alice", f.ID))
	require.NoError(t, c.DeleteThread(ctx, "alice", th.ID))

	err = c.DeleteThread(ctx, "alice", th.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = c.CreateFolder(ctx, "alice", model.FolderRequest{Name: ""})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAPI_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := newClient(srv)

	_, err := c.FetchPage(context.Background(), "eve", model.PageParams{Limit: 1})
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	resp, err := http.Get(srv.URL + "/api/folders")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/threads?limit=abc", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok-alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t, fakeHealth{ok: true})
	c := newClient(srv)
	require.NoError(t, c.HealthPing(context.Background()))

	down, _ := newTestServer(t, fakeHealth{ok: false, down: []string{"store"}})
	err := newClient(down).HealthPing(context.Background())
	assert.ErrorIs(t, err, model.ErrTransient)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

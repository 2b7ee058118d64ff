package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/api"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/auth"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/services"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/sidebar"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/memstore"
)

func newBackend(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	st := memstore.New(time.Now)
	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Store:      st,
		Authorizer: auth.NewStaticAuthorizer(map[string]string{"tok": "alice"}),
		Limits:     services.PageLimits{Default: 30, Max: 100},
	}))
	t.Cleanup(srv.Close)
	return srv, st
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func seed(t *testing.T, st *memstore.Store, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		_, err := st.Threads().Create(context.Background(), &model.Thread{
			Title: "t" + string(rune('0'+i)), CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Visibility: model.VisibilityPrivate, UserID: "alice",
		})
		require.NoError(t, err)
	}
}

func TestLoadThroughRedisCache(t *testing.T) {
	srv, st := newBackend(t)
	seed(t, st, 3)
	mr := miniredis.RunT(t)
	common := []string{"--api", srv.URL, "--user", "alice", "--token", "tok", "--redis", "redis://" + mr.Addr()}
	ctx := context.Background()

	out, err := run(t, ctx, append([]string{"load"}, common...)...)
	require.NoError(t, err)
	var first loadOutput
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, sidebar.SourceNetwork, first.Source)
	require.Len(t, first.Data.Threads, 3)
	assert.Equal(t, "t3", first.Data.Threads[0].Title)

	// A second process sees the entry written by the first.
	out, err = run(t, ctx, append([]string{"load"}, common...)...)
	require.NoError(t, err)
	var second loadOutput
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Equal(t, sidebar.SourceFreshCache, second.Source)
	assert.Equal(t, first.Data, second.Data)

	_, err = run(t, ctx, append([]string{"create-thread", "--title", "fresh"}, common...)...)
	require.NoError(t, err)
	out, err = run(t, ctx, append([]string{"load"}, common...)...)
	require.NoError(t, err)
	var third loadOutput
	require.NoError(t, json.Unmarshal([]byte(out), &third))
	assert.Equal(t, sidebar.SourceNetwork, third.Source)
	assert.Equal(t, "fresh", third.Data.Threads[0].Title)

	out, err = run(t, ctx, append([]string{"invalidate"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "sidebar:alice:")
	assert.Empty(t, mr.Keys())
}

func TestLoadRepeatedInProcess(t *testing.T) {
	srv, st := newBackend(t)
	seed(t, st, 2)
	out, err := run(t, context.Background(), "load", "--times", "2", "--api", srv.URL, "--user", "alice", "--token", "tok")
	require.NoError(t, err)
	var res loadOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, sidebar.SourceFreshCache, res.Source)
}

func TestPageCommand(t *testing.T) {
	srv, st := newBackend(t)
	seed(t, st, 3)
	out, err := run(t, context.Background(), "page", "--limit", "2", "--api", srv.URL, "--user", "alice", "--token", "tok")
	require.NoError(t, err)
	var page model.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Len(t, page.Threads, 2)
	assert.True(t, page.HasMore)

	_, err = run(t, context.Background(), "page", "--after", "", "--api", srv.URL, "--user", "alice", "--token", "tok")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestUnauthorized(t *testing.T) {
	srv, _ := newBackend(t)
	_, err := run(t, context.Background(), "load", "--api", srv.URL, "--user", "alice", "--token", "wrong")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = run(t, context.Background(), "load", "--api", srv.URL)
	assert.Error(t, err)
}

func TestWatchPrintsView(t *testing.T) {
	srv, st := newBackend(t)
	seed(t, st, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	out, err := run(t, ctx, "watch", "--interval", "100ms", "--api", srv.URL, "--user", "alice", "--token", "tok")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "source=network threads=2")
	assert.Contains(t, lines[0], "[t2, t1]")
}
